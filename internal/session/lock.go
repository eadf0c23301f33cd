// Package session implements the vault's lock state machine.
//
// A Lock starts LOCKED. Unlock moves it to UNLOCKED and starts a single-shot
// countdown; every Touch records activity and restarts the countdown. When
// the countdown fires the elapsed time since the last activity is checked
// again, so a timer delivered early (or late, after the process was
// suspended) never locks a session that is still within its timeout.
// Background locks immediately when enabled; Foreground locks if the
// timeout passed while the process was away.
//
// Each UNLOCKED -> LOCKED transition publishes exactly one Event to every
// subscriber. Publishing never blocks the state machine: subscribers read
// from buffered channels on their own goroutines.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/logging"
)

// Reason tells why the session locked.
type Reason string

const (
	ReasonManual     Reason = "manual"
	ReasonTimeout    Reason = "timeout"
	ReasonBackground Reason = "background"
	ReasonShutdown   Reason = "shutdown"
)

// Event describes one lock transition.
type Event struct {
	Reason       Reason
	At           time.Time
	LastActivity time.Time
}

// Settings configure auto-lock.
type Settings struct {
	Enabled          bool
	Timeout          time.Duration
	LockOnBackground bool
}

var ErrClosed = errors.New("session closed")

const subscriberBuffer = 8

type Lock struct {
	mu       sync.Mutex
	clock    Clock
	logger   logging.Logger
	settings Settings

	locked       bool
	closed       bool
	lastActivity time.Time

	timer Timer
	// gen invalidates callbacks of timers that were replaced or stopped
	// after they had already started firing.
	gen uint64

	subs    map[uint64]chan Event
	nextSub uint64
}

type Option func(*Lock)

func WithClock(c Clock) Option { return func(l *Lock) { l.clock = c } }

func WithLogger(lg logging.Logger) Option { return func(l *Lock) { l.logger = lg } }

// New returns a locked session. It fails with common.ErrConfig for a
// non-positive timeout.
func New(s Settings, opts ...Option) (*Lock, error) {
	if err := validate(s); err != nil {
		return nil, err
	}
	l := &Lock{
		clock:    RealClock(),
		logger:   logging.Nop(),
		settings: s,
		locked:   true,
		subs:     make(map[uint64]chan Event),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

func validate(s Settings) error {
	if s.Timeout <= 0 {
		return fmt.Errorf("auto-lock timeout must be positive: %w", common.ErrConfig)
	}
	return nil
}

func (l *Lock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// LastActivity returns the time of the last unlock or Touch.
func (l *Lock) LastActivity() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastActivity
}

func (l *Lock) Settings() Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings
}

// Unlock moves the session to UNLOCKED, records activity and starts the
// countdown. Unlocking an unlocked session only refreshes activity.
func (l *Lock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	l.locked = false
	l.lastActivity = l.clock.Now()
	l.scheduleLocked(l.settings.Timeout)
	return nil
}

// Touch records activity. It fails with common.ErrNotAuthenticated while
// locked and changes nothing in that case.
func (l *Lock) Touch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked {
		return common.ErrNotAuthenticated
	}
	l.lastActivity = l.clock.Now()
	l.scheduleLocked(l.settings.Timeout)
	return nil
}

// Lock locks the session. It reports whether a transition happened; locking
// a locked session is a no-op and publishes nothing.
func (l *Lock) Lock(reason Reason) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lockLocked(reason)
}

// UpdateSettings applies new auto-lock settings immediately. Disabling
// cancels the countdown; a new timeout is measured from the last recorded
// activity, which may lock the session right away.
func (l *Lock) UpdateSettings(s Settings) error {
	if err := validate(s); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.settings = s
	if l.locked || l.closed {
		return nil
	}
	l.rescheduleFromActivityLocked(ReasonTimeout)
	return nil
}

// Background is called when the host process goes to background or becomes
// inactive.
func (l *Lock) Background() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked || !l.settings.Enabled {
		return
	}
	if l.settings.LockOnBackground {
		l.lockLocked(ReasonBackground)
	}
}

// Foreground is called when the host process becomes active again. Timers
// may not have run while suspended, so the deadline is re-evaluated.
func (l *Lock) Foreground() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locked || l.closed {
		return
	}
	l.rescheduleFromActivityLocked(ReasonTimeout)
}

// Subscribe returns a channel receiving one Event per lock transition and a
// function that ends the subscription and closes the channel.
func (l *Lock) Subscribe() (<-chan Event, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if l.closed {
		close(ch)
		return ch, func() {}
	}

	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
		})
	}
}

// Close locks the session, cancels any pending countdown so nothing fires
// after teardown, and closes all subscriptions.
func (l *Lock) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.lockLocked(ReasonShutdown)
	l.closed = true
	for id, c := range l.subs {
		delete(l.subs, id)
		close(c)
	}
}

func (l *Lock) lockLocked(reason Reason) bool {
	l.stopTimerLocked()
	if l.locked {
		return false
	}
	l.locked = true

	ev := Event{Reason: reason, At: l.clock.Now(), LastActivity: l.lastActivity}
	for _, c := range l.subs {
		select {
		case c <- ev:
		default:
			l.logger.Warn(context.Background(), "lock event dropped, subscriber buffer full", "reason", reason)
		}
	}
	return true
}

func (l *Lock) rescheduleFromActivityLocked(reason Reason) {
	if !l.settings.Enabled {
		l.stopTimerLocked()
		return
	}
	elapsed := l.clock.Now().Sub(l.lastActivity)
	if elapsed >= l.settings.Timeout {
		l.lockLocked(reason)
		return
	}
	l.scheduleLocked(l.settings.Timeout - elapsed)
}

// scheduleLocked replaces any pending countdown with one firing after d.
func (l *Lock) scheduleLocked(d time.Duration) {
	l.stopTimerLocked()
	if !l.settings.Enabled {
		return
	}
	gen := l.gen
	l.timer = l.clock.AfterFunc(d, func() { l.onTimer(gen) })
}

func (l *Lock) stopTimerLocked() {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Lock) onTimer(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen || l.locked || l.closed {
		return
	}
	l.rescheduleFromActivityLocked(ReasonTimeout)
}
