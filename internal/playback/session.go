// Package playback owns the presentation state machine: position, autoplay,
// manual navigation and the transition planned on every advance.
package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/slideshow/internal/effects"
	"github.com/ivlev/slideshow/internal/media"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Presenting reports whether a session is active.
func (s State) Presenting() bool { return s == Playing || s == Paused }

// Trigger tells who caused an advance.
type Trigger int

const (
	TriggerManual Trigger = iota
	TriggerTimer
)

func (t Trigger) String() string {
	if t == TriggerTimer {
		return "timer"
	}
	return "manual"
}

// DefaultInterval is the autoplay period used when Options leave it unset.
const DefaultInterval = 4 * time.Second

// Options configure a new session.
type Options struct {
	Interval   time.Duration
	Mode       effects.Mode
	Title      string
	Soundtrack *media.Soundtrack
}

// Session is the mutable state of one presentation. It is only touched
// under the controller lock; callers read it through Snapshot.
type Session struct {
	id            uuid.UUID
	title         string
	assets        []*media.Asset
	soundtrack    *media.Soundtrack
	index         int
	playing       bool
	interval      time.Duration
	mode          effects.Mode
	lastDirection int
	advances      int
	startedAt     time.Time
}

// Snapshot is an immutable copy of a session.
type Snapshot struct {
	ID            uuid.UUID
	Title         string
	Assets        []*media.Asset
	Soundtrack    *media.Soundtrack
	Index         int
	Playing       bool
	State         State
	Interval      time.Duration
	Mode          effects.Mode
	LastDirection int
	Advances      int
	StartedAt     time.Time
}

// Len is the number of assets in the session.
func (s Snapshot) Len() int { return len(s.Assets) }

// Current returns the asset on display, nil for an empty snapshot.
func (s Snapshot) Current() *media.Asset {
	if len(s.Assets) == 0 || s.Index < 0 || s.Index >= len(s.Assets) {
		return nil
	}
	return s.Assets[s.Index]
}

// TotalDuration is the time one full autoplay cycle takes.
func (s Snapshot) TotalDuration() time.Duration {
	return time.Duration(len(s.Assets)) * s.Interval
}

func (s *Session) snapshot(state State) Snapshot {
	assets := make([]*media.Asset, len(s.assets))
	copy(assets, s.assets)
	return Snapshot{
		ID:            s.id,
		Title:         s.title,
		Assets:        assets,
		Soundtrack:    s.soundtrack,
		Index:         s.index,
		Playing:       s.playing,
		State:         state,
		Interval:      s.interval,
		Mode:          s.mode,
		LastDirection: s.lastDirection,
		Advances:      s.advances,
		StartedAt:     s.startedAt,
	}
}

// step moves the position by direction with wrap-around and returns the
// previous index.
func (s *Session) step(direction int) int {
	prev := s.index
	n := len(s.assets)
	s.index = ((s.index+direction)%n + n) % n
	s.lastDirection = direction
	s.advances++
	return prev
}

// Event describes one position change. Listeners run outside the
// controller lock, so concurrent advances may be delivered out of order;
// Seq increases with every advance of a session and orders them.
type Event struct {
	Session    uuid.UUID
	Seq        int
	Previous   int
	Index      int
	Direction  int
	Trigger    Trigger
	Transition effects.Transition
	At         time.Time
}

// Listener receives advance events. It runs outside the controller lock and
// may call back into the controller.
type Listener func(Event)

// StartHook runs under the controller lock when a session starts, before
// the autoplay timer is armed. It must not call back into the controller.
type StartHook func(snap Snapshot)

// CloseHook runs while a session is being closed, after the autoplay timer
// is disarmed and before asset handles are released.
type CloseHook func(ctx context.Context, snap Snapshot) error
