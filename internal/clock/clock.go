// Package clock provides the monotonic time source and one-shot timer
// primitives that the conncheck engine schedules itself on. The engine
// treats the underlying event loop as an external collaborator rather
// than calling time.AfterFunc directly; this package is the thin,
// swappable implementation of that collaborator used by production
// code, with a fake exercised by the engine's own tests.
package clock

import "time"

// Timer is a cancelable one-shot alarm, mirroring time.Timer's surface
// without tying callers to *time.Timer itself.
type Timer interface {
	// Stop prevents the timer from firing. It returns true if the call
	// stops the timer, false if the timer has already fired or been
	// stopped.
	Stop() bool

	// Reset reschedules the timer to fire after d, as if it had just
	// been created. The caller must not have observed the timer fire
	// without draining it; Reset follows time.Timer's documented
	// caveats.
	Reset(d time.Duration) bool
}

// Clock is the source of monotonic time and one-shot timers consumed by
// the engine. Production code uses Real; tests use a fake that advances
// time under the test's control so retransmission and pacing logic can
// be exercised deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is a Clock backed by the standard library's wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
