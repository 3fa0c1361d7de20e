package render

import (
	"context"
	"sync/atomic"
	"time"
)

// Scheduler coalesces redraw requests into single frames. Any number of
// Request calls made before the pending frame runs produce one frame.
type Scheduler struct {
	pending atomic.Bool
	ready   chan struct{}
	// interval is the minimum spacing between frames; zero means none.
	interval time.Duration
}

// NewScheduler returns a scheduler that runs at most one frame per interval.
// Use 16ms for display-like pacing or 0 to draw as soon as requested.
func NewScheduler(interval time.Duration) *Scheduler {
	return &Scheduler{ready: make(chan struct{}, 1), interval: interval}
}

// Request asks for a frame. It reports false when one was already pending
// and the request was folded into it.
func (s *Scheduler) Request() bool {
	if !s.pending.CompareAndSwap(false, true) {
		return false
	}
	s.ready <- struct{}{}
	return true
}

// Pending reports whether a frame is waiting to run.
func (s *Scheduler) Pending() bool { return s.pending.Load() }

// Run calls draw once per coalesced request until ctx is done. The pending
// flag is cleared before draw runs, so requests made while drawing schedule
// the next frame.
func (s *Scheduler) Run(ctx context.Context, draw func(context.Context)) {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ready:
		}
		if s.interval > 0 {
			if wait := s.interval - time.Since(last); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
		}
		s.pending.Store(false)
		last = time.Now()
		draw(ctx)
	}
}
