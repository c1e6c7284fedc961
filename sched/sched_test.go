package sched

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestAfterFuncFiresAfterAdvance(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := New(fake)

	fired := make(chan struct{}, 1)
	s.AfterFunc(time.Second, func() { fired <- struct{}{} })

	fake.Advance(999 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("timer fired early")
	default:
	}

	fake.Advance(2 * time.Millisecond)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	fake := clockwork.NewFakeClock()
	s := New(fake)

	fired := make(chan struct{}, 1)
	timer := s.AfterFunc(time.Second, func() { fired <- struct{}{} })

	timer.Cancel()
	timer.Cancel() // must not panic

	fake.Advance(2 * time.Second)
	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}
