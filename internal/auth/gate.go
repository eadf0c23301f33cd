// Package auth implements the credential gate: PIN setup and verification,
// delegation to the platform biometric prompt, and the policy combining
// them. It never touches vault data.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/platform"
	"golang.org/x/time/rate"
)

const (
	DefaultPrompt = "Authenticate to access your secrets"

	MsgBiometricUnavailable = "biometric authentication is not available"
	MsgBiometricRejected    = "biometric authentication failed"
	MsgPINRequired          = "PIN authentication required"
	MsgNoMethod             = "no authentication method is set up"
)

// modalityPriority orders modalities when the hardware offers several.
var modalityPriority = []models.Modality{
	models.ModalityFingerprint,
	models.ModalityFacial,
	models.ModalityIris,
}

// KV is the slice of the secure store the gate needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetMany(ctx context.Context, values map[string][]byte) error
}

type Gate struct {
	mu        sync.Mutex
	kv        KV
	biometric platform.Biometric
	logger    logging.Logger

	params       HashParams
	minPINLength int
	attempts     int
	limiter      *rate.Limiter
}

type Option func(*Gate)

func WithHashParams(p HashParams) Option { return func(g *Gate) { g.params = p } }

func WithMinPINLength(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.minPINLength = n
		}
	}
}

// WithAttemptsPerMinute bounds PIN verification attempts; the whole budget
// is available as a burst.
func WithAttemptsPerMinute(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.attempts = n
		}
	}
}

func WithLogger(l logging.Logger) Option { return func(g *Gate) { g.logger = l } }

func NewGate(kv KV, biometric platform.Biometric, opts ...Option) *Gate {
	if biometric == nil {
		biometric = platform.NoBiometric{}
	}
	g := &Gate{
		kv:           kv,
		biometric:    biometric,
		logger:       logging.Nop(),
		params:       DefaultHashParams,
		minPINLength: 4,
		attempts:     5,
	}
	for _, o := range opts {
		o(g)
	}
	g.limiter = newLimiter(g.attempts)
	return g
}

func newLimiter(perMinute int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// Config returns the stored configuration; a missing record is the zero value.
func (g *Gate) Config(ctx context.Context) (models.AuthConfig, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loadLocked(ctx)
}

func (g *Gate) loadLocked(ctx context.Context) (models.AuthConfig, error) {
	var cfg models.AuthConfig
	raw, err := g.kv.Get(ctx, common.KeyAuthConfig)
	if err != nil {
		return cfg, fmt.Errorf("read auth config: %w", err)
	}
	if raw == nil {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.AuthConfig{}, fmt.Errorf("decode auth config: %w: %w", common.ErrCorruptData, err)
	}
	return cfg, nil
}

func (g *Gate) saveLocked(ctx context.Context, cfg models.AuthConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := g.kv.Set(ctx, common.KeyAuthConfig, raw); err != nil {
		return fmt.Errorf("write auth config: %w", err)
	}
	return nil
}

func (g *Gate) IsPINSet(ctx context.Context) (bool, error) {
	cfg, err := g.Config(ctx)
	if err != nil {
		return false, err
	}
	return cfg.PINHash != "", nil
}

// SetupPIN stores a salted hash of pin, replacing any previous PIN. The PIN
// itself is never stored. Short PINs fail with common.ErrConfig.
func (g *Gate) SetupPIN(ctx context.Context, pin []byte) error {
	if len(pin) < g.minPINLength {
		return fmt.Errorf("pin must be at least %d characters: %w", g.minPINLength, common.ErrConfig)
	}

	hash, err := HashPIN(g.params, pin)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cfg, err := g.loadLocked(ctx)
	if err != nil && !errors.Is(err, common.ErrCorruptData) {
		return err
	}
	cfg.PINHash = hash
	if err := g.saveLocked(ctx, cfg); err != nil {
		return err
	}
	g.limiter = newLimiter(g.attempts)
	g.logger.Info(ctx, "pin configured")
	return nil
}

// VerifyPIN reports whether pin matches the stored hash. It returns false
// without error when no PIN is set, and common.ErrTooManyAttempts once the
// attempt budget is spent.
func (g *Gate) VerifyPIN(ctx context.Context, pin []byte) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.limiter.Allow() {
		g.logger.Warn(ctx, "pin attempt throttled")
		return false, common.ErrTooManyAttempts
	}

	cfg, err := g.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	if cfg.PINHash == "" {
		return false, nil
	}

	ok, err := CheckPIN(pin, cfg.PINHash)
	if err != nil {
		return false, fmt.Errorf("stored pin hash: %w: %w", common.ErrCorruptData, err)
	}
	if !ok {
		g.logger.Warn(ctx, "pin rejected")
	}
	return ok, nil
}

// BiometricAvailable reports whether hardware is present and enrolled, and
// the preferred modality. Platform errors count as unavailable.
func (g *Gate) BiometricAvailable(ctx context.Context) (bool, models.Modality) {
	caps, err := g.biometric.Capabilities(ctx)
	if err != nil {
		g.logger.Warn(ctx, "biometric capability query failed", "error", err)
		return false, models.ModalityNone
	}
	if !caps.HasHardware || !caps.Enrolled {
		return false, models.ModalityNone
	}
	return true, preferredModality(caps.Modalities)
}

func preferredModality(offered []models.Modality) models.Modality {
	for _, want := range modalityPriority {
		for _, m := range offered {
			if m == want {
				return m
			}
		}
	}
	return models.ModalityNone
}

// AuthenticateBiometric runs the platform prompt. Unavailability, rejection
// and prompt errors are all failed results, never errors.
func (g *Gate) AuthenticateBiometric(ctx context.Context, prompt string) models.AuthResult {
	available, modality := g.BiometricAvailable(ctx)
	if !available {
		return models.AuthResult{Error: MsgBiometricUnavailable}
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}

	ok, err := g.biometric.Prompt(ctx, prompt)
	if err != nil {
		g.logger.Warn(ctx, "biometric prompt failed", "error", err)
		return models.AuthResult{Modality: modality, Error: MsgBiometricRejected}
	}
	if !ok {
		return models.AuthResult{Modality: modality, Error: MsgBiometricRejected}
	}
	return models.AuthResult{Success: true, Modality: modality}
}

// Authenticate applies the policy: biometric first when enabled and
// available; otherwise, or after a biometric failure, ask for the PIN if one
// is configured. The error is reserved for storage failures.
func (g *Gate) Authenticate(ctx context.Context, prompt string) (models.AuthResult, error) {
	cfg, err := g.Config(ctx)
	if err != nil {
		return models.AuthResult{}, err
	}

	var bio models.AuthResult
	if cfg.BiometricEnabled {
		bio = g.AuthenticateBiometric(ctx, prompt)
		if bio.Success {
			return bio, nil
		}
	}

	if cfg.PINHash == "" {
		return models.AuthResult{Modality: bio.Modality, Error: MsgNoMethod}, nil
	}
	return models.AuthResult{Modality: bio.Modality, PINRequired: true, Error: MsgPINRequired}, nil
}

// SetBiometricEnabled toggles biometric as a factor. The auth config is
// written in one transaction together with the records in with, so related
// settings never disagree. Enabling fails with common.ErrConfig when no
// usable biometric hardware is present.
func (g *Gate) SetBiometricEnabled(ctx context.Context, enabled bool, with map[string][]byte) error {
	if enabled {
		if ok, _ := g.BiometricAvailable(ctx); !ok {
			return fmt.Errorf("%s: %w", MsgBiometricUnavailable, common.ErrConfig)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cfg, err := g.loadLocked(ctx)
	if err != nil {
		return err
	}
	cfg.BiometricEnabled = enabled
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	values := make(map[string][]byte, len(with)+1)
	for k, v := range with {
		values[k] = v
	}
	values[common.KeyAuthConfig] = raw
	if err := g.kv.SetMany(ctx, values); err != nil {
		return fmt.Errorf("write auth config: %w", err)
	}
	return nil
}

// Reset forgets in-memory state after the stored config was removed: the
// attempt budget starts over.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiter = newLimiter(g.attempts)
}
