// Package models defines the vault's data types: secret records, the
// encrypted blob envelope, authentication config and user settings.
package models

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
)

// RecordKind classifies a secret record.
type RecordKind string

const (
	KindLogin RecordKind = "login"
	KindTOTP  RecordKind = "totp"
)

// Record is one vault entry. Secret holds the sensitive payload: a password
// for logins, a base32 shared seed for one-time-code records.
type Record struct {
	ID        string     `json:"id"`
	Kind      RecordKind `json:"kind,omitempty"`
	Title     string     `json:"title"`
	Username  string     `json:"username"`
	Secret    string     `json:"secret"`
	Website   string     `json:"website,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// RecordInput carries the fields of a new record; id and timestamps are
// assigned by the vault.
type RecordInput struct {
	Kind     RecordKind
	Title    string
	Username string
	Secret   string
	Website  string
	Notes    string
}

// RecordPatch is a partial update. Nil fields are left untouched; the id and
// creation time can never be changed.
type RecordPatch struct {
	Kind     *RecordKind
	Title    *string
	Username *string
	Secret   *string
	Website  *string
	Notes    *string
}

// IsEmpty reports whether the patch changes nothing.
func (p RecordPatch) IsEmpty() bool {
	return p.Kind == nil && p.Title == nil && p.Username == nil &&
		p.Secret == nil && p.Website == nil && p.Notes == nil
}

// Apply copies the non-nil patch fields onto r.
func (p RecordPatch) Apply(r *Record) {
	if p.Kind != nil {
		r.Kind = *p.Kind
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Username != nil {
		r.Username = *p.Username
	}
	if p.Secret != nil {
		r.Secret = *p.Secret
	}
	if p.Website != nil {
		r.Website = *p.Website
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
}

// Normalize fills the default kind and canonicalizes one-time-code seeds
// (spaces removed, upper case, no padding). It returns common.ErrConfig for
// an unknown kind or a seed that is not valid base32.
func (r *Record) Normalize() error {
	switch r.Kind {
	case "":
		r.Kind = KindLogin
	case KindLogin:
	case KindTOTP:
		seed, err := NormalizeSeed(r.Secret)
		if err != nil {
			return err
		}
		r.Secret = seed
	default:
		return fmt.Errorf("unknown record kind %q: %w", r.Kind, common.ErrConfig)
	}
	return nil
}

// NormalizeSeed canonicalizes a base32 one-time-code seed.
func NormalizeSeed(s string) (string, error) {
	seed := strings.ToUpper(strings.Join(strings.Fields(s), ""))
	seed = strings.TrimRight(seed, "=")
	if seed == "" {
		return "", fmt.Errorf("empty one-time-code seed: %w", common.ErrConfig)
	}
	if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(seed); err != nil {
		return "", fmt.Errorf("one-time-code seed is not base32: %w", common.ErrConfig)
	}
	return seed, nil
}

// Matches reports whether the lower-cased query is a substring of the title,
// username, website or notes. The secret is never searched.
func (r *Record) Matches(lowerQuery string) bool {
	for _, field := range []string{r.Title, r.Username, r.Website, r.Notes} {
		if strings.Contains(strings.ToLower(field), lowerQuery) {
			return true
		}
	}
	return false
}
