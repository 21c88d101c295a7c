package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeFiresInDueOrder(t *testing.T) {
	f := NewFake(epoch)
	var order []int
	f.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	f.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	f.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	f.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected order after 2s: %v", order)
	}
	if f.Pending() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", f.Pending())
	}
	f.Advance(time.Second)
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("unexpected order after 3s: %v", order)
	}
}

func TestFakeCallbackSeesDueTime(t *testing.T) {
	f := NewFake(epoch)
	var seen time.Time
	f.AfterFunc(1500*time.Millisecond, func() { seen = f.Now() })
	f.Advance(5 * time.Second)
	if !seen.Equal(epoch.Add(1500 * time.Millisecond)) {
		t.Errorf("callback saw %v", seen)
	}
	if !f.Now().Equal(epoch.Add(5 * time.Second)) {
		t.Errorf("clock at %v after advance", f.Now())
	}
}

func TestFakeRearmFromCallback(t *testing.T) {
	f := NewFake(epoch)
	var fires int
	var tick func()
	tick = func() {
		fires++
		f.AfterFunc(time.Second, tick)
	}
	f.AfterFunc(time.Second, tick)
	f.Advance(5 * time.Second)
	if fires != 5 {
		t.Errorf("expected 5 fires, got %d", fires)
	}
}

func TestFakeStop(t *testing.T) {
	f := NewFake(epoch)
	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("expected Stop to report a pending timer")
	}
	if timer.Stop() {
		t.Fatal("second Stop should report false")
	}
	f.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestSchedulerArmReplacesPending(t *testing.T) {
	f := NewFake(epoch)
	s := NewScheduler(f)
	var got []Token

	first := s.Arm(time.Second, func(tok Token) { got = append(got, tok) })
	second := s.Arm(2*time.Second, func(tok Token) { got = append(got, tok) })
	if first == second {
		t.Fatal("expected distinct tokens")
	}
	if !s.Due().Equal(epoch.Add(2 * time.Second)) {
		t.Errorf("unexpected due %v", s.Due())
	}

	f.Advance(3 * time.Second)
	if len(got) != 1 || got[0] != second {
		t.Fatalf("expected only the second arming to fire, got %v", got)
	}
}

func TestSchedulerDisarmInvalidatesToken(t *testing.T) {
	f := NewFake(epoch)
	s := NewScheduler(f)
	tok := s.Arm(time.Second, func(Token) {})
	if !s.Valid(tok) || !s.Armed() {
		t.Fatal("expected armed scheduler")
	}
	s.Disarm()
	if s.Valid(tok) || s.Armed() {
		t.Fatal("expected disarmed scheduler")
	}
	if s.Fired(tok) {
		t.Fatal("stale token must not be accepted")
	}
	if !s.Due().IsZero() {
		t.Errorf("expected zero due time, got %v", s.Due())
	}
}

func TestSchedulerFiredConsumesToken(t *testing.T) {
	f := NewFake(epoch)
	s := NewScheduler(f)
	var accepted int
	s.Arm(time.Second, func(tok Token) {
		if s.Fired(tok) {
			accepted++
		}
		if s.Fired(tok) {
			accepted++
		}
	})
	f.Advance(time.Second)
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted fire, got %d", accepted)
	}
	if s.Armed() {
		t.Fatal("scheduler should be idle after firing")
	}
}

func TestRealClockAfterFunc(t *testing.T) {
	var fired atomic.Bool
	done := make(chan struct{})
	New().AfterFunc(time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
	if !fired.Load() {
		t.Fatal("expected callback to run")
	}
}
