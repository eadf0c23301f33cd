package service

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/models"
)

const msgInvalidPIN = "invalid PIN"

// Authenticate runs the credential policy and unlocks the session on
// success. A result with PINRequired asks the caller for AuthenticateWithPIN.
func (s *Service) Authenticate(ctx context.Context, reason string) (models.AuthResult, error) {
	if err := s.ready(); err != nil {
		return models.AuthResult{}, err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	res, err := s.gate.Authenticate(ctx, reason)
	if err != nil {
		return models.AuthResult{}, err
	}
	if !res.Success {
		s.setLastError(res.Error)
		return res, nil
	}
	if err := s.unlock(res.Modality); err != nil {
		return models.AuthResult{}, err
	}
	return res, nil
}

// AuthenticateWithPIN unlocks the session when pin matches. A wrong PIN
// returns false and leaves the session locked; a throttled attempt fails with
// common.ErrTooManyAttempts.
func (s *Service) AuthenticateWithPIN(ctx context.Context, pin string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	buf := []byte(pin)
	defer common.WipeByteArray(buf)

	ok, err := s.gate.VerifyPIN(ctx, buf)
	if err != nil {
		if errors.Is(err, common.ErrTooManyAttempts) {
			s.setLastError(err.Error())
		}
		return false, err
	}
	if !ok {
		s.setLastError(msgInvalidPIN)
		return false, nil
	}
	if err := s.unlock(models.ModalityNone); err != nil {
		return false, err
	}
	return true, nil
}

// SetupPIN stores a new PIN. Replacing an existing PIN requires an unlocked
// session.
func (s *Service) SetupPIN(ctx context.Context, pin string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	set, err := s.gate.IsPINSet(ctx)
	if err != nil && !errors.Is(err, common.ErrCorruptData) {
		return false, err
	}
	if set && s.lock.IsLocked() {
		return false, common.ErrNotAuthenticated
	}

	buf := []byte(pin)
	defer common.WipeByteArray(buf)
	if err := s.gate.SetupPIN(ctx, buf); err != nil {
		return false, err
	}
	if !s.lock.IsLocked() {
		_ = s.lock.Touch()
	}
	return true, nil
}

func (s *Service) IsPINSetup(ctx context.Context) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.gate.IsPINSet(ctx)
}

// IsBiometricAvailable reports whether a usable biometric factor exists and
// which modality it is.
func (s *Service) IsBiometricAvailable(ctx context.Context) (bool, models.Modality) {
	if s.ready() != nil {
		return false, models.ModalityNone
	}
	return s.gate.BiometricAvailable(ctx)
}

func (s *Service) unlock(m models.Modality) error {
	if err := s.lock.Unlock(); err != nil {
		return err
	}
	s.mu.Lock()
	s.modality = m
	s.lastError = ""
	s.mu.Unlock()
	s.recordActivity()
	s.logger.Info(context.Background(), "vault unlocked", "modality", m)
	return nil
}

func (s *Service) setLastError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}
