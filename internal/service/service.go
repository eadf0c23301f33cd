// Package service is the single entry point of the vault. It owns the secure
// store, the encrypted vault, the credential gate and the session lock, and
// gates every vault operation on the session being unlocked.
//
// Lifecycle: New, Initialize once, any number of operations, Close.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/auth"
	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/config"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/platform"
	"github.com/dmitrijs2005/gophvault/internal/securestore"
	"github.com/dmitrijs2005/gophvault/internal/session"
	"github.com/dmitrijs2005/gophvault/internal/vault"
)

type Service struct {
	cfg    config.Config
	logger logging.Logger
	clock  session.Clock

	biometric  platform.Biometric
	hashParams auth.HashParams
	newID      func() string

	// initMu serializes Initialize, WipeAll and Close.
	initMu sync.Mutex

	// Set by Initialize, immutable afterwards.
	store securestore.Store
	seed  *vault.DeviceSeed
	vault *vault.Store
	gate  *auth.Gate
	lock  *session.Lock

	mu          sync.Mutex
	initialized bool
	closed      bool
	dataLost    bool
	modality    models.Modality
	lastError   string
	lastSession time.Time
	// last activity written to the store during the current session
	activitySaved time.Time
	onLock        func(session.Event)
	unsubscribe   func()
	dispatchDone  chan struct{}
}

type Option func(*Service)

// WithStore uses an already opened store instead of opening
// cfg.DatabasePath during Initialize. The service closes it on Close.
func WithStore(st securestore.Store) Option { return func(s *Service) { s.store = st } }

func WithBiometric(b platform.Biometric) Option { return func(s *Service) { s.biometric = b } }

func WithClock(c session.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l logging.Logger) Option { return func(s *Service) { s.logger = l } }

func WithHashParams(p auth.HashParams) Option { return func(s *Service) { s.hashParams = p } }

func WithIDGenerator(fn func() string) Option { return func(s *Service) { s.newID = fn } }

func New(cfg config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		logger:     logging.Nop(),
		clock:      session.RealClock(),
		biometric:  platform.NoBiometric{},
		hashParams: auth.DefaultHashParams,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Initialize opens storage, makes sure the device seed exists, loads the
// vault and only then creates the session lock. It is idempotent. A corrupt
// vault is reset and reported through AuthState.DataLost, not as an error;
// an unusable store fails with common.ErrStorageUnavailable.
func (s *Service) Initialize(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	initialized, closed := s.initialized, s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("service closed: %w", common.ErrNotInitialized)
	}
	if initialized {
		return nil
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if s.store == nil {
		st, err := securestore.Open(ctx, s.cfg.DatabasePath)
		if err != nil {
			return err
		}
		s.store = st
	}

	s.seed = vault.NewDeviceSeed(s.store)
	created, err := s.seed.Ensure(ctx)
	if err != nil {
		return fmt.Errorf("initialize device seed: %w", err)
	}
	if created {
		s.logger.Info(ctx, "device seed created")
	}

	vopts := []vault.Option{
		vault.WithClock(s.clock.Now),
		vault.WithLogger(s.logger.With("component", "vault")),
		vault.WithCorruptionHandler(s.markDataLost),
	}
	if s.newID != nil {
		vopts = append(vopts, vault.WithIDGenerator(s.newID))
	}
	s.vault = vault.NewStore(s.store, s.seed, vopts...)

	if _, err := s.vault.Load(ctx); err != nil && !errors.Is(err, common.ErrCorruptData) {
		return fmt.Errorf("load vault: %w", err)
	}
	// Plaintext is only held while unlocked.
	s.vault.Forget()

	s.gate = auth.NewGate(s.store, s.biometric,
		auth.WithHashParams(s.hashParams),
		auth.WithMinPINLength(s.cfg.PINMinLength),
		auth.WithAttemptsPerMinute(s.cfg.PINAttemptsPerMinute),
		auth.WithLogger(s.logger.With("component", "auth")),
	)

	settings := s.loadSettings(ctx)
	lock, err := session.New(settings,
		session.WithClock(s.clock),
		session.WithLogger(s.logger.With("component", "session")),
	)
	if err != nil {
		return err
	}
	s.lock = lock

	lastSession := s.loadLastActivity(ctx)

	events, unsubscribe := lock.Subscribe()
	done := make(chan struct{})
	go s.dispatch(events, done)

	s.mu.Lock()
	s.lastSession = lastSession
	s.unsubscribe = unsubscribe
	s.dispatchDone = done
	s.initialized = true
	s.mu.Unlock()

	s.logger.Info(ctx, "vault initialized", "auto_lock", settings.Enabled, "timeout", settings.Timeout.String())
	return nil
}

// Close locks the session, waits for pending lock notifications, drops the
// decrypted collection and closes the store. Using the service afterwards
// fails with common.ErrNotInitialized.
func (s *Service) Close() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	initialized, done := s.initialized, s.dispatchDone
	s.initialized = false
	s.mu.Unlock()

	if initialized {
		s.lock.Close()
		<-done
		s.vault.Forget()
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// opContext bounds a single storage round trip.
func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

func (s *Service) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return common.ErrNotInitialized
	}
	return nil
}

// unlocked fails with common.ErrNotAuthenticated while the session is locked.
func (s *Service) unlocked() error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.lock.IsLocked() {
		return common.ErrNotAuthenticated
	}
	return nil
}

// guarded runs fn for an unlocked session under the operation timeout and
// records activity only once fn has succeeded. A session that locked while
// fn was running reports common.ErrNotAuthenticated, and whatever fn
// decrypted after the lock is dropped again.
func (s *Service) guarded(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.unlocked(); err != nil {
		return err
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if err := fn(ctx); err != nil {
		if s.lock.IsLocked() {
			s.vault.Forget()
		}
		return err
	}
	if err := s.lock.Touch(); err != nil {
		s.vault.Forget()
		return err
	}
	s.recordActivity()
	return nil
}

func (s *Service) markDataLost(err error) {
	s.mu.Lock()
	s.dataLost = true
	s.mu.Unlock()
	s.logger.Warn(context.Background(), "corrupt vault discarded", "error", err)
}

func (s *Service) defaultSettings() session.Settings {
	return session.Settings{
		Enabled:          s.cfg.AutoLockEnabled,
		Timeout:          s.cfg.AutoLockTimeout,
		LockOnBackground: s.cfg.LockOnBackground,
	}
}

// loadSettings overlays persisted settings on the configured defaults.
// Unreadable or out of range values are ignored.
func (s *Service) loadSettings(ctx context.Context) session.Settings {
	out := s.defaultSettings()

	raw, err := s.store.Get(ctx, common.KeyAutoLockSettings)
	if err != nil || raw == nil {
		return out
	}
	var saved models.Settings
	if err := json.Unmarshal(raw, &saved); err != nil {
		s.logger.Warn(ctx, "ignoring unreadable settings", "error", err)
		return out
	}
	out.Enabled = saved.AutoLockEnabled
	if validMinutes(saved.AutoLockTimeoutMinutes) {
		out.Timeout = time.Duration(saved.AutoLockTimeoutMinutes) * time.Minute
	}
	return out
}

func (s *Service) loadLastActivity(ctx context.Context) time.Time {
	raw, err := s.store.Get(ctx, common.KeyLastActivity)
	if err != nil || raw == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}
	}
	return t
}
