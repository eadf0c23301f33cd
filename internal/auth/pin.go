package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// HashParams are the argon2id cost parameters for PIN hashing.
type HashParams struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLen     int
	KeyLen      uint32
}

var DefaultHashParams = HashParams{
	Memory:      64 * 1024,
	Time:        3,
	Parallelism: 1,
	SaltLen:     16,
	KeyLen:      32,
}

var ErrInvalidHash = errors.New("invalid pin hash")

const hashPrefix = "argon2id$"

// Upper bounds for parameters read back from a stored hash. A tampered
// record must not be able to demand gigabytes of memory.
const (
	maxHashMemory      = 1 << 21 // KiB, 2 GiB
	maxHashTime        = 10
	maxHashParallelism = 16
	maxHashKeyLen      = 64
)

// HashPIN returns pin hashed with a random salt, encoded as
//
//	argon2id$m=<M>,t=<T>,p=<P>$<b64 salt>$<b64 key>
//
// so verification can recompute it with the same parameters and salt.
func HashPIN(p HashParams, pin []byte) (string, error) {
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(pin, salt, p.Time, p.Memory, p.Parallelism, p.KeyLen)
	return fmt.Sprintf("%sm=%d,t=%d,p=%d$%s$%s", hashPrefix,
		p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// CheckPIN recomputes the hash of pin with the parameters and salt stored in
// encoded and compares in constant time.
func CheckPIN(pin []byte, encoded string) (bool, error) {
	if !strings.HasPrefix(encoded, hashPrefix) {
		return false, ErrInvalidHash
	}
	parts := strings.Split(encoded[len(hashPrefix):], "$")
	if len(parts) != 3 {
		return false, ErrInvalidHash
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[0], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return false, ErrInvalidHash
	}
	if m == 0 || t == 0 || p == 0 {
		return false, ErrInvalidHash
	}
	if m > maxHashMemory || t > maxHashTime || p > maxHashParallelism {
		return false, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil || len(salt) == 0 {
		return false, ErrInvalidHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(want) == 0 || len(want) > maxHashKeyLen {
		return false, ErrInvalidHash
	}

	got := argon2.IDKey(pin, salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
