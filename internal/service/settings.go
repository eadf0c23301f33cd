package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/passwordx"
	"github.com/dmitrijs2005/gophvault/internal/session"
)

const (
	MinAutoLockMinutes = 1
	MaxAutoLockMinutes = 60
)

func validMinutes(m int) bool {
	return m >= MinAutoLockMinutes && m <= MaxAutoLockMinutes
}

func (s *Service) GetSettings(ctx context.Context) (models.Settings, error) {
	if err := s.ready(); err != nil {
		return models.Settings{}, err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	cfg, err := s.gate.Config(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	return toModel(s.lock.Settings(), cfg.BiometricEnabled), nil
}

// UpdateSettings merges patch into the current settings, persists them and
// applies them to the session immediately. It needs an unlocked session;
// timeouts outside [1, 60] minutes fail with common.ErrConfig.
func (s *Service) UpdateSettings(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	if patch.AutoLockTimeoutMinutes != nil && !validMinutes(*patch.AutoLockTimeoutMinutes) {
		return models.Settings{}, fmt.Errorf("auto-lock timeout must be %d-%d minutes: %w",
			MinAutoLockMinutes, MaxAutoLockMinutes, common.ErrConfig)
	}

	var out models.Settings
	err := s.guarded(ctx, func(ctx context.Context) error {
		next := s.lock.Settings()
		if patch.AutoLockEnabled != nil {
			next.Enabled = *patch.AutoLockEnabled
		}
		if patch.AutoLockTimeoutMinutes != nil {
			next.Timeout = time.Duration(*patch.AutoLockTimeoutMinutes) * time.Minute
		}

		cfg, err := s.gate.Config(ctx)
		if err != nil {
			return err
		}
		biometric := cfg.BiometricEnabled
		if patch.BiometricEnabled != nil {
			biometric = *patch.BiometricEnabled
		}

		out = toModel(next, biometric)
		raw, err := json.Marshal(out)
		if err != nil {
			return err
		}
		if patch.BiometricEnabled != nil {
			// auth config and settings land in one transaction
			err = s.gate.SetBiometricEnabled(ctx, biometric, map[string][]byte{common.KeyAutoLockSettings: raw})
			if err != nil {
				return err
			}
		} else if err := s.store.Set(ctx, common.KeyAutoLockSettings, raw); err != nil {
			return fmt.Errorf("persist settings: %w", err)
		}
		return s.lock.UpdateSettings(next)
	})
	if err != nil {
		return models.Settings{}, err
	}
	return out, nil
}

func toModel(st session.Settings, biometric bool) models.Settings {
	return models.Settings{
		AutoLockEnabled:        st.Enabled,
		AutoLockTimeoutMinutes: int(st.Timeout / time.Minute),
		BiometricEnabled:       biometric,
	}
}

// GenerateSecret returns a random secret; it needs no session.
func (s *Service) GenerateSecret(opts cryptox.CharsetOptions) (string, error) {
	return cryptox.GenerateSecret(opts)
}

func (s *Service) PasswordStrength(pw string) passwordx.Strength {
	return passwordx.Evaluate(pw)
}

func (s *Service) ValidatePassword(pw string, req passwordx.Requirements) []string {
	return passwordx.Validate(pw, req)
}

// WipeAll locks the session and deletes every stored item: vault, PIN and
// biometric config, settings and the device seed. The deletion is a single
// statement, so a failure leaves everything in place. A fresh seed is
// created afterwards so the vault can be used again after a new PIN setup.
// It is allowed while locked since it is the only way out of a forgotten PIN.
func (s *Service) WipeAll(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	s.lock.Lock(session.ReasonManual)

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("wipe store: %w", err)
	}
	s.vault.Forget()
	s.gate.Reset()

	if _, err := s.seed.Ensure(ctx); err != nil {
		return err
	}
	if err := s.lock.UpdateSettings(s.defaultSettings()); err != nil {
		return err
	}

	s.mu.Lock()
	s.dataLost = false
	s.lastError = ""
	s.lastSession = time.Time{}
	s.activitySaved = time.Time{}
	s.mu.Unlock()

	s.logger.Warn(ctx, "all vault data wiped")
	return nil
}
