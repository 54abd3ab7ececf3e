package stream

import (
	"strings"
	"time"
)

const defaultCharDelay = 8 * time.Millisecond

// Smoother paces the reveal of a monotonically growing source text at a
// bounded character rate, independent of how fast the network delivers
// it. The display is always a prefix of the source; the cursor never
// moves backward, and it snaps to the full text the moment streaming
// ends or the source is replaced wholesale.
type Smoother struct {
	charDelay time.Duration
	source    []rune
	raw       string
	streaming bool
	cursor    int
	lastStep  time.Time
}

func NewSmoother(charDelay time.Duration) *Smoother {
	if charDelay <= 0 {
		charDelay = defaultCharDelay
	}
	return &Smoother{charDelay: charDelay}
}

// SetSource feeds the current full text and streaming flag. A new text
// that does not extend the previous one signals a session or content
// switch rather than an append, and is shown immediately.
func (s *Smoother) SetSource(text string, streaming bool, now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	replaced := !strings.HasPrefix(text, s.raw)
	s.raw = text
	s.source = []rune(text)
	s.streaming = streaming

	if !streaming || replaced {
		s.cursor = len(s.source)
		s.lastStep = now
		return
	}
	if s.cursor > len(s.source) {
		s.cursor = len(s.source)
	}
	if s.lastStep.IsZero() {
		s.lastStep = now
	}
}

// Advance moves the reveal cursor by the characters earned since the last
// step and reports whether another frame is still needed.
func (s *Smoother) Advance(now time.Time) (string, bool) {
	if now.IsZero() {
		now = time.Now()
	}
	if !s.streaming {
		s.cursor = len(s.source)
		return s.raw, false
	}
	if s.cursor >= len(s.source) {
		s.lastStep = now
		return s.raw, false
	}
	if s.lastStep.IsZero() {
		s.lastStep = now
	}
	elapsed := now.Sub(s.lastStep)
	steps := int(elapsed / s.charDelay)
	if steps > 0 {
		s.cursor += steps
		s.lastStep = s.lastStep.Add(time.Duration(steps) * s.charDelay)
		if s.cursor >= len(s.source) {
			s.cursor = len(s.source)
			return s.raw, false
		}
	}
	return string(s.source[:s.cursor]), true
}

// Display returns the currently revealed prefix without advancing.
func (s *Smoother) Display() string {
	if !s.streaming || s.cursor >= len(s.source) {
		return s.raw
	}
	return string(s.source[:s.cursor])
}

func (s *Smoother) Done() bool {
	return !s.streaming || s.cursor >= len(s.source)
}
