// Package common defines shared constants and sentinel errors used across
// the vault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Session errors.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotInitialized   = errors.New("vault not initialized")

	// Credential errors.
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTooManyAttempts      = errors.New("too many failed attempts")

	// Invalid generator, settings or record input.
	ErrConfig = errors.New("invalid configuration")

	// Storage errors.
	ErrCorruptData        = errors.New("stored vault data is corrupt")
	ErrStorageUnavailable = errors.New("secure storage unavailable")
	ErrNotFound           = errors.New("not found")

	// Backup document errors.
	ErrImport = errors.New("malformed backup document")
)
