package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm names an AEAD construction. The name is stored next to the
// ciphertext so blobs written by older builds stay readable.
type Algorithm string

const (
	AES256GCM         Algorithm = "aes256gcm"
	XChaCha20Poly1305 Algorithm = "xchacha20poly1305"

	// DefaultAlgorithm is used for every new encryption.
	DefaultAlgorithm = AES256GCM
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported cipher algorithm")
	// ErrDecrypt covers wrong key, wrong IV and any ciphertext or AAD
	// tampering; AEAD failures are intentionally indistinguishable.
	ErrDecrypt = errors.New("decryption failed")
)

func newAEAD(alg Algorithm, key []byte) (cipher.AEAD, error) {
	switch alg {
	case AES256GCM:
		if len(key) != KeySize {
			return nil, fmt.Errorf("aes-256 key must be %d bytes, got %d", KeySize, len(key))
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// Encrypt seals plaintext under key with a fresh random IV. aad is
// authenticated but not encrypted and must be passed unchanged to Decrypt.
// Empty plaintext is allowed.
func Encrypt(alg Algorithm, plaintext, key, aad []byte) (ciphertext, iv []byte, err error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, nil, err
	}

	iv = make([]byte, aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}

	ciphertext = aead.Seal(nil, iv, plaintext, aad)
	return ciphertext, iv, nil
}

// Decrypt opens a ciphertext produced by Encrypt. Any authentication failure
// is reported as ErrDecrypt; nothing is returned for tampered input.
func Decrypt(alg Algorithm, ciphertext, key, iv, aad []byte) ([]byte, error) {
	aead, err := newAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrDecrypt, aead.NonceSize())
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
