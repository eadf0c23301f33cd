// Package platform adapts host facilities the vault depends on: the
// biometric prompt and process hardening (core dumps, locked memory).
package platform

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/models"
)

// Capabilities describe what the biometric hardware can do right now.
type Capabilities struct {
	HasHardware bool
	Enrolled    bool
	Modalities  []models.Modality
}

// Biometric is the host's biometric primitive. Prompt returns ok=false for a
// rejected or cancelled attempt; an error means the prompt itself failed.
type Biometric interface {
	Capabilities(ctx context.Context) (Capabilities, error)
	Prompt(ctx context.Context, message string) (ok bool, err error)
}

// NoBiometric is used on hosts without biometric hardware, such as a
// terminal session.
type NoBiometric struct{}

func (NoBiometric) Capabilities(context.Context) (Capabilities, error) {
	return Capabilities{}, nil
}

func (NoBiometric) Prompt(context.Context, string) (bool, error) {
	return false, nil
}
