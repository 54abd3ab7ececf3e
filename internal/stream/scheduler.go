package stream

import "time"

const defaultFrameInterval = 33 * time.Millisecond

// FrameScheduler throttles redraws while text is streaming in, so the
// rendering thread is never driven faster than the frame interval no
// matter how fast events arrive.
type FrameScheduler interface {
	Request(now time.Time) bool
	ShouldRender(now time.Time) bool
	MarkRendered(now time.Time)
}

type throttledFrameScheduler struct {
	minInterval  time.Duration
	lastRendered time.Time
	pending      bool
}

func NewFrameScheduler(minInterval time.Duration) FrameScheduler {
	if minInterval < 0 {
		minInterval = 0
	}
	return &throttledFrameScheduler{minInterval: minInterval}
}

func NewDefaultFrameScheduler() FrameScheduler {
	return NewFrameScheduler(defaultFrameInterval)
}

// Request asks for a redraw; returns true when it may happen immediately,
// otherwise the request is held until the interval elapses.
func (s *throttledFrameScheduler) Request(now time.Time) bool {
	if s.minInterval <= 0 || s.ready(now) {
		return true
	}
	s.pending = true
	return false
}

func (s *throttledFrameScheduler) ShouldRender(now time.Time) bool {
	if !s.pending {
		return false
	}
	return s.minInterval <= 0 || s.ready(now)
}

func (s *throttledFrameScheduler) MarkRendered(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	s.pending = false
	s.lastRendered = now
}

func (s *throttledFrameScheduler) ready(now time.Time) bool {
	if now.IsZero() {
		now = time.Now()
	}
	if s.lastRendered.IsZero() {
		return true
	}
	return now.Sub(s.lastRendered) >= s.minInterval
}
