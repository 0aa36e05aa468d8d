package watch

import (
	"context"
	"time"
)

// Scheduler fires a callback whenever the earliest pending deadline passes.
//
// next and fire run on the scheduler goroutine; both are expected to take
// whatever lock guards the Manager they consult. Call Poke after receiving
// events so the timer is re-armed to the new earliest deadline.
type Scheduler struct {
	next  func() (time.Time, bool)
	fire  func(now time.Time)
	clock func() time.Time
	poke  chan struct{}
}

// NewScheduler creates a Scheduler. clock may be nil to use time.Now.
func NewScheduler(next func() (time.Time, bool), fire func(now time.Time), clock func() time.Time) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		next:  next,
		fire:  fire,
		clock: clock,
		poke:  make(chan struct{}, 1),
	}
}

// Poke asks the scheduler to recompute its deadline. It never blocks.
func (s *Scheduler) Poke() {
	select {
	case s.poke <- struct{}{}:
	default:
		// a wake-up is already queued
	}
}

// Run drives the timer until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var fired <-chan time.Time
		if deadline, ok := s.next(); ok {
			wait := deadline.Sub(s.clock())
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
			fired = timer.C
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.poke:
		case <-fired:
			s.fire(s.clock())
		}
	}
}
