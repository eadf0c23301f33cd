package service

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/session"
)

// dispatch handles lock transitions off the state machine's goroutine: it
// drops the decrypted collection, records the last activity and then runs
// the lock callback.
func (s *Service) dispatch(events <-chan session.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		s.vault.Forget()
		s.persistLastActivity(ev.LastActivity)

		s.mu.Lock()
		s.modality = models.ModalityNone
		s.lastSession = ev.LastActivity
		cb := s.onLock
		s.mu.Unlock()

		s.logger.Info(context.Background(), "vault locked", "reason", ev.Reason)
		if cb != nil {
			cb(ev)
		}
	}
}

// activityPersistInterval bounds how often activity inside a session is
// written to the store.
const activityPersistInterval = time.Minute

// recordActivity persists the session's last activity, at most once per
// activityPersistInterval, so a crash still leaves a recent timestamp.
func (s *Service) recordActivity() {
	at := s.lock.LastActivity()

	s.mu.Lock()
	due := s.activitySaved.IsZero() || at.Sub(s.activitySaved) >= activityPersistInterval
	if due {
		s.activitySaved = at
	}
	s.mu.Unlock()

	if due {
		s.persistLastActivity(at)
	}
}

func (s *Service) persistLastActivity(t time.Time) {
	if t.IsZero() {
		return
	}
	ctx, cancel := s.opContext(context.Background())
	defer cancel()
	if err := s.store.Set(ctx, common.KeyLastActivity, []byte(t.UTC().Format(time.RFC3339))); err != nil {
		s.logger.Warn(ctx, "persist last activity failed", "error", err)
	}
}

// SetOnLockCallback registers fn to run once per lock transition. fn runs on
// the notification goroutine and must not call Close.
func (s *Service) SetOnLockCallback(fn func(session.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLock = fn
}

// Subscribe returns a channel with one Event per lock transition, closed by
// the returned cancel function or by Close.
func (s *Service) Subscribe() (<-chan session.Event, func(), error) {
	if err := s.ready(); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.lock.Subscribe()
	return ch, cancel, nil
}

// Lock is always permitted; locking a locked or uninitialized vault is a
// no-op.
func (s *Service) Lock() {
	if s.ready() != nil {
		return
	}
	if s.lock.Lock(session.ReasonManual) {
		s.vault.Forget()
	}
}

func (s *Service) IsLocked() bool {
	if s.ready() != nil {
		return true
	}
	return s.lock.IsLocked()
}

func (s *Service) GetAuthState() models.AuthState {
	s.mu.Lock()
	st := models.AuthState{
		IsInitialized: s.initialized,
		Modality:      s.modality,
		Error:         s.lastError,
		DataLost:      s.dataLost,
	}
	s.mu.Unlock()

	if st.IsInitialized {
		st.IsAuthenticated = !s.lock.IsLocked()
	}
	return st
}

// LastSession returns the last recorded activity of a previous session, or
// the zero time.
func (s *Service) LastSession() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSession
}

// Background and Foreground forward host lifecycle transitions.
func (s *Service) Background() {
	if s.ready() == nil {
		s.lock.Background()
	}
}

func (s *Service) Foreground() {
	if s.ready() == nil {
		s.lock.Foreground()
	}
}
