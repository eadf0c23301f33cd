package cryptox

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the length of every derived vault key.
	KeySize = 32
	// SaltSize is the length of the per-save random salt.
	SaltSize = 32
)

var vaultKeyInfo = []byte("gophvault/vault-key/v1")

var ErrWeakKeyMaterial = errors.New("root secret and salt must not be empty")

// DeriveKey expands rootSecret and salt into a KeySize-byte key. The result
// is deterministic for a fixed pair. The caller owns the returned slice and
// should wipe it after use.
func DeriveKey(rootSecret, salt []byte) ([]byte, error) {
	if len(rootSecret) == 0 || len(salt) == 0 {
		return nil, ErrWeakKeyMaterial
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, rootSecret, salt, vaultKeyInfo), key); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return key, nil
}
