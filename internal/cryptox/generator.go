package cryptox

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

const (
	charsetLower   = "abcdefghijklmnopqrstuvwxyz"
	charsetUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits  = "0123456789"
	charsetSymbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	DefaultSecretLength = 16
	MinSecretLength     = 4
	MaxSecretLength     = 128
)

// CharsetOptions selects the generated secret's length and character classes.
type CharsetOptions struct {
	Length  int
	Lower   bool
	Upper   bool
	Digits  bool
	Symbols bool
}

// DefaultCharsetOptions returns 16 characters drawn from all four classes.
func DefaultCharsetOptions() CharsetOptions {
	return CharsetOptions{Length: DefaultSecretLength, Lower: true, Upper: true, Digits: true, Symbols: true}
}

func (o CharsetOptions) alphabet() string {
	var b strings.Builder
	if o.Lower {
		b.WriteString(charsetLower)
	}
	if o.Upper {
		b.WriteString(charsetUpper)
	}
	if o.Digits {
		b.WriteString(charsetDigits)
	}
	if o.Symbols {
		b.WriteString(charsetSymbols)
	}
	return b.String()
}

// GenerateSecret draws opts.Length characters uniformly from the union of the
// selected classes using crypto/rand. It returns common.ErrConfig when no
// class is selected or the length is outside [MinSecretLength, MaxSecretLength].
func GenerateSecret(opts CharsetOptions) (string, error) {
	alphabet := opts.alphabet()
	if alphabet == "" {
		return "", fmt.Errorf("at least one character class must be enabled: %w", common.ErrConfig)
	}
	if opts.Length < MinSecretLength || opts.Length > MaxSecretLength {
		return "", fmt.Errorf("length %d outside [%d, %d]: %w",
			opts.Length, MinSecretLength, MaxSecretLength, common.ErrConfig)
	}

	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, opts.Length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
