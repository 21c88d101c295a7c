package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/clock"
	"github.com/ivlev/slideshow/internal/effects"
	"github.com/ivlev/slideshow/internal/faults"
	"github.com/ivlev/slideshow/internal/logging"
	"github.com/ivlev/slideshow/internal/media"
	"github.com/ivlev/slideshow/internal/metrics"
)

// AssetReleaser frees asset handles. *media.HandleStore implements it.
type AssetReleaser interface {
	Release(h media.Handle) bool
}

// Controller drives one presentation at a time. All operations, including
// autoplay ticks, are serialized by a single lock.
//
// A manual Advance does not reset the autoplay timer: the timer keeps its
// own cadence, so a gesture shortly before a tick is followed by that tick.
type Controller struct {
	clock    clock.Clock
	sched    *clock.Scheduler
	planner  *effects.Planner
	releaser AssetReleaser
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	session   *Session
	listeners []Listener
	starts    []StartHook
	hooks     []CloseHook
}

// NewController returns an idle controller. A nil clock means wall time, a
// nil planner gets the defaults and a nil releaser leaves handles alone.
func NewController(c clock.Clock, planner *effects.Planner, releaser AssetReleaser, logger *zap.Logger) *Controller {
	if c == nil {
		c = clock.New()
	}
	if planner == nil {
		planner = effects.NewPlanner(0, nil, nil)
	}
	return &Controller{
		clock:    c,
		sched:    clock.NewScheduler(c),
		planner:  planner,
		releaser: releaser,
		logger:   logging.OrNop(logger),
	}
}

// Subscribe registers l for every subsequent advance.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// OnStart registers a hook run by Start.
func (c *Controller) OnStart(h StartHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts = append(c.starts, h)
}

// OnClose registers a hook run by Close.
func (c *Controller) OnClose(h CloseHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, h)
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the active session. ok is false while idle.
func (c *Controller) Snapshot() (snap Snapshot, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Snapshot{}, false
	}
	return c.session.snapshot(c.state), true
}

// Start begins presenting assets from index 0 with autoplay on.
func (c *Controller) Start(assets []*media.Asset, opts Options) (Snapshot, error) {
	if len(assets) == 0 {
		return Snapshot{}, faults.Wrap(faults.ErrPrecondition, "playback", "start", "no assets to present", nil)
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Presenting() {
		return Snapshot{}, faults.Wrap(faults.ErrConflict, "playback", "start", "a presentation is already running", nil)
	}

	owned := make([]*media.Asset, len(assets))
	copy(owned, assets)
	c.session = &Session{
		id:            uuid.New(),
		title:         opts.Title,
		assets:        owned,
		soundtrack:    opts.Soundtrack,
		playing:       true,
		interval:      opts.Interval,
		mode:          opts.Mode,
		lastDirection: 1,
		startedAt:     c.clock.Now(),
	}
	c.setStateLocked(Playing)
	snap := c.session.snapshot(c.state)
	// до запуска таймера: первый тик не должен опередить подписчиков
	for _, h := range c.starts {
		h(snap)
	}
	c.armLocked()

	c.logger.Info("presentation started",
		zap.String("session", c.session.id.String()),
		zap.Int("assets", len(owned)),
		zap.Duration("interval", opts.Interval),
		zap.Stringer("mode", opts.Mode),
	)
	return snap, nil
}

// Advance moves the position by direction (+1 or -1) as a user gesture.
func (c *Controller) Advance(direction int) (Event, error) {
	if direction != 1 && direction != -1 {
		return Event{}, faults.Wrap(faults.ErrPrecondition, "playback", "advance", "direction must be +1 or -1", nil)
	}
	c.mu.Lock()
	if !c.state.Presenting() {
		c.mu.Unlock()
		return Event{}, faults.Wrap(faults.ErrPrecondition, "playback", "advance", "no active presentation", nil)
	}
	ev := c.advanceLocked(direction, TriggerManual)
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, ev)
	return ev, nil
}

// TogglePlay flips between Playing and Paused and reports whether playback
// is now running. Resuming arms a full interval starting now.
func (c *Controller) TogglePlay() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Presenting() {
		return false, faults.Wrap(faults.ErrPrecondition, "playback", "toggle", "no active presentation", nil)
	}

	s := c.session
	s.playing = !s.playing
	if s.playing {
		c.setStateLocked(Playing)
		c.armLocked()
	} else {
		c.setStateLocked(Paused)
		c.sched.Disarm()
	}
	c.logger.Debug("playback toggled",
		zap.String("session", s.id.String()),
		zap.Bool("playing", s.playing),
		zap.Int(logging.FieldIndex, s.index),
	)
	return s.playing, nil
}

// Close ends the presentation: the timer is disarmed, close hooks run and
// every handle the session owns is released once. Closing while idle is a
// no-op. Hook errors are joined and returned after cleanup completes.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return nil
	}
	c.sched.Disarm()
	s := c.session
	snap := s.snapshot(c.state)
	c.session = nil
	c.setStateLocked(Idle)
	hooks := make([]CloseHook, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := h(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}

	released := 0
	if c.releaser != nil {
		for _, a := range s.assets {
			if c.releaser.Release(a.Handle) {
				released++
			}
		}
		if s.soundtrack != nil && c.releaser.Release(s.soundtrack.Handle) {
			released++
		}
	}

	c.logger.Info("presentation closed",
		zap.String("session", s.id.String()),
		zap.Int("advances", s.advances),
		zap.Int("released", released),
	)
	return errors.Join(errs...)
}

// tick is the autoplay callback. Stale tokens are dropped.
func (c *Controller) tick(tok clock.Token) {
	c.mu.Lock()
	if !c.sched.Fired(tok) || c.state != Playing {
		c.mu.Unlock()
		return
	}
	ev := c.advanceLocked(1, TriggerTimer)
	c.armLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, ev)
}

func (c *Controller) advanceLocked(direction int, trigger Trigger) Event {
	s := c.session
	prev := s.step(direction)
	ev := Event{
		Session:    s.id,
		Seq:        s.advances,
		Previous:   prev,
		Index:      s.index,
		Direction:  direction,
		Trigger:    trigger,
		Transition: c.planner.Plan(direction, s.mode),
		At:         c.clock.Now(),
	}
	metrics.AdvancesTotal.WithLabelValues(trigger.String()).Inc()
	c.logger.Debug("advanced",
		zap.Int(logging.FieldIndex, ev.Index),
		zap.Int(logging.FieldDirection, direction),
		zap.Stringer(logging.FieldTrigger, trigger),
	)
	return ev
}

func (c *Controller) armLocked() {
	c.sched.Arm(c.session.interval, c.tick)
}

func (c *Controller) setStateLocked(st State) {
	if c.state == st {
		return
	}
	c.state = st
	metrics.PlaybackTransitionsTotal.WithLabelValues(st.String()).Inc()
}

func (c *Controller) listenersLocked() []Listener {
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

func notify(listeners []Listener, ev Event) {
	for _, l := range listeners {
		l(ev)
	}
}
