// Package sched provides a timer primitive: a one-shot, cancellable timer
// used exclusively to drive TCP retransmission timeouts. Callbacks run on
// the clock's own goroutine, not on the goroutine that scheduled them. It wires a clockwork.Clock through its components instead of
// calling time.AfterFunc directly, so tests can advance a fake clock
// deterministically.
package sched

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a scheduled call_later handle. Cancel is idempotent: calling it
// more than once, or after the timer has already fired, is a no-op.
type Timer interface {
	Cancel()
}

// Scheduler schedules one-shot, cancellable callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Now() time.Time
}

type clockScheduler struct {
	clock clockwork.Clock
}

// New returns a Scheduler backed by clock. Passing clockwork.NewFakeClock
// in tests makes RTO-driven retransmission deterministic.
func New(clock clockwork.Clock) Scheduler {
	return &clockScheduler{clock: clock}
}

func (s *clockScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return &clockworkTimer{t: s.clock.AfterFunc(d, fn)}
}

func (s *clockScheduler) Now() time.Time { return s.clock.Now() }

type clockworkTimer struct {
	t clockwork.Timer
}

func (t *clockworkTimer) Cancel() {
	t.t.Stop()
}
