package session

import "time"

// Clock abstracts time so the lock state machine can be driven
// deterministically in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the cancel handle of a scheduled callback. It is an alias so
// test clocks outside this package can satisfy Clock without importing it.
type Timer = interface {
	Stop() bool
}

type realClock struct{}

// RealClock is backed by the time package.
func RealClock() Clock { return realClock{} }

// Now strips the monotonic reading. The monotonic clock stops while the
// machine sleeps, and elapsed inactivity must include that time.
func (realClock) Now() time.Time { return time.Now().Round(0) }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
