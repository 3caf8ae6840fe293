// Package waiter provides a sleep that another goroutine can cut short.
//
// A Waiter carries one pending-interrupt flag. Interrupt sets it, and the
// next wake (timed or interrupted) clears it, so interrupts raised before a
// wait are not lost and several interrupts collapse into one wake.
package waiter

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Waiter is an interruptible sleep. Only one goroutine may wait on a Waiter
// at a time; Interrupt is safe from any goroutine.
type Waiter struct {
	clock     clockwork.Clock
	interrupt chan struct{}
}

// New creates a Waiter. A nil clock means the real clock.
func New(clock clockwork.Clock) *Waiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Waiter{
		clock:     clock,
		interrupt: make(chan struct{}, 1),
	}
}

// Interrupt wakes the current or next wait.
func (w *Waiter) Interrupt() {
	select {
	case w.interrupt <- struct{}{}:
	default:
	}
}

// WaitFor sleeps for d or until interrupted. It reports whether the wake
// was caused by an interrupt.
func (w *Waiter) WaitFor(d time.Duration) bool {
	return w.WaitUntil(w.clock.Now().Add(d))
}

// WaitUntil sleeps until t or until interrupted.
func (w *Waiter) WaitUntil(t time.Time) bool {
	if w.reset() {
		return true
	}

	d := t.Sub(w.clock.Now())
	if d <= 0 {
		return false
	}

	timer := w.clock.NewTimer(d)
	defer timer.Stop()

	// The clock may have passed t before the timer was armed.
	if !w.clock.Now().Before(t) {
		w.reset()
		return false
	}

	select {
	case <-w.interrupt:
		return true
	case <-timer.Chan():
		w.reset()
		return false
	}
}

// WaitForever sleeps until interrupted.
func (w *Waiter) WaitForever() bool {
	<-w.interrupt
	return true
}

// reset clears a pending interrupt and reports whether one was set.
func (w *Waiter) reset() bool {
	select {
	case <-w.interrupt:
		return true
	default:
		return false
	}
}
