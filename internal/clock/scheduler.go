package clock

import (
	"sync"
	"time"
)

// Token identifies one arming of a Scheduler. A callback whose token is no
// longer current must not act.
type Token uint64

// Scheduler holds at most one pending one-shot callback. Arm replaces the
// pending callback, Disarm cancels it. Every arming gets a fresh token that
// is passed to the callback, so a callback racing with Disarm can detect that
// it was cancelled.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	current Token
	timer   Timer
	due     time.Time
}

// NewScheduler returns a disarmed scheduler on clock c.
func NewScheduler(c Clock) *Scheduler {
	if c == nil {
		c = New()
	}
	return &Scheduler{clock: c}
}

// Arm cancels any pending callback and schedules fn to run after d.
func (s *Scheduler) Arm(d time.Duration, fn func(Token)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.current++
	tok := s.current
	s.due = s.clock.Now().Add(d)
	s.timer = s.clock.AfterFunc(d, func() { fn(tok) })
	return tok
}

// Disarm cancels the pending callback, if any, and invalidates its token.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.current++
}

// Valid reports whether tok is the token of the pending arming.
func (s *Scheduler) Valid(tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil && tok == s.current
}

// Fired marks tok as consumed. It reports false if tok was stale, in which
// case the caller must drop the callback.
func (s *Scheduler) Fired(tok Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil || tok != s.current {
		return false
	}
	s.timer = nil
	s.due = time.Time{}
	return true
}

// Armed reports whether a callback is pending.
func (s *Scheduler) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Due returns when the pending callback fires, or the zero time when disarmed.
func (s *Scheduler) Due() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.due = time.Time{}
}
