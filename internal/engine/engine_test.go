package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/slideshow/internal/album"
	"github.com/ivlev/slideshow/internal/capture"
	"github.com/ivlev/slideshow/internal/clock"
	"github.com/ivlev/slideshow/internal/config"
	"github.com/ivlev/slideshow/internal/effects"
	"github.com/ivlev/slideshow/internal/faults"
	"github.com/ivlev/slideshow/internal/media"
	"github.com/ivlev/slideshow/internal/playback"
)

var epoch = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type memStream struct {
	ch   chan []byte
	once sync.Once
}

func (s *memStream) Chunks() <-chan []byte { return s.ch }

func (s *memStream) Release(context.Context) error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// memSource emits one chunk per acquisition.
type memSource struct {
	mu       sync.Mutex
	acquired int
}

func (m *memSource) Acquire(_ context.Context, _ capture.Spec) (capture.Stream, error) {
	m.mu.Lock()
	m.acquired++
	m.mu.Unlock()
	s := &memStream{ch: make(chan []byte, 1)}
	s.ch <- []byte("WEBM")
	return s, nil
}

func pngFile(t *testing.T, name string) media.RawFile {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 16, 9))); err != nil {
		t.Fatal(err)
	}
	return media.FileFromBytes(name, "image/png", buf.Bytes())
}

func newTestPresenter(t *testing.T) (*Presenter, *clock.Fake, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.LockPath = filepath.Join(dir, "capture.lock")
	cfg.Width, cfg.Height = 64, 36
	cfg.Workers = 2
	cfg.Seed = 1

	fake := clock.NewFake(epoch)
	p, err := New(Options{
		Config:     cfg,
		Clock:      fake,
		Converters: media.Converters{},
		Source:     &memSource{},
		HandleDir:  dir,
		Probe: func(context.Context, string) (time.Duration, error) {
			return 30 * time.Second, nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { p.Close(context.Background()) })
	return p, fake, dir
}

func TestPresenterRecordsFullCycle(t *testing.T) {
	p, fake, _ := newTestPresenter(t)
	ctx := context.Background()

	snap, err := p.Open(ctx, []media.RawFile{
		pngFile(t, "a.png"),
		media.FileFromBytes("b.jpg", "image/jpeg", []byte("garbage")),
		pngFile(t, "c.png"),
	}, SessionOptions{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if snap.Len() != 2 || snap.Assets[0].Name != "a.png" || snap.Assets[1].Name != "c.png" {
		t.Fatalf("unexpected session assets: %d", snap.Len())
	}

	job, err := p.Record(ctx)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if job.Planned != 8*time.Second {
		t.Errorf("planned %v", job.Planned)
	}
	if _, err := p.Record(ctx); !errors.Is(err, faults.ErrConflict) {
		t.Errorf("second Record: %v", err)
	}

	fake.Advance(8 * time.Second)
	if job.Status() != capture.StatusCompleted {
		t.Fatalf("job status %v: %v", job.Status(), job.Err())
	}
	art, _ := job.Artifact()
	if filepath.Base(art.Path) != "Memories.webm" {
		t.Errorf("artifact %s", art.Path)
	}
	data, err := os.ReadFile(art.Path)
	if err != nil || string(data) != "WEBM" {
		t.Errorf("artifact content %q: %v", data, err)
	}

	cur, _ := p.Snapshot()
	if cur.Index != 0 || cur.Advances != 2 {
		t.Errorf("after a full cycle: index %d, advances %d", cur.Index, cur.Advances)
	}
	// Playback keeps going after the recording ends.
	if p.Controller().State() != playback.Playing {
		t.Errorf("state %v", p.Controller().State())
	}
}

func TestCloseSessionFinalizesRecordingAndReleases(t *testing.T) {
	p, fake, _ := newTestPresenter(t)
	ctx := context.Background()
	audio := media.FileFromBytes("song.mp3", "audio/mpeg", []byte("ID3"))

	snap, err := p.Open(ctx, []media.RawFile{pngFile(t, "a.png"), pngFile(t, "b.png")}, SessionOptions{Audio: &audio})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if snap.Soundtrack == nil || snap.Soundtrack.Duration != 30*time.Second {
		t.Fatalf("soundtrack %+v", snap.Soundtrack)
	}
	if p.Store().Len() != 3 {
		t.Fatalf("live handles %d", p.Store().Len())
	}

	job, err := p.Record(ctx)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	fake.Advance(2 * time.Second)

	if err := p.CloseSession(ctx); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if job.Status() != capture.StatusCompleted {
		t.Errorf("job status %v", job.Status())
	}
	if p.Store().Len() != 0 {
		t.Errorf("%d handles still live", p.Store().Len())
	}
	if p.Controller().State() != playback.Idle {
		t.Errorf("state %v", p.Controller().State())
	}
	if fake.Pending() != 0 {
		t.Errorf("%d timers pending after close", fake.Pending())
	}
}

func TestOpenWithNothingUsable(t *testing.T) {
	p, _, _ := newTestPresenter(t)
	_, err := p.Open(context.Background(), []media.RawFile{
		media.FileFromBytes("broken.png", "image/png", []byte("nope")),
	}, SessionOptions{})
	if !errors.Is(err, faults.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if p.Controller().State() != playback.Idle {
		t.Errorf("state %v", p.Controller().State())
	}
	if p.Store().Len() != 0 {
		t.Errorf("%d handles leaked", p.Store().Len())
	}
}

func TestRecordWithoutSession(t *testing.T) {
	p, _, _ := newTestPresenter(t)
	if _, err := p.Record(context.Background()); !errors.Is(err, faults.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestOpenAlbum(t *testing.T) {
	p, fake, dir := newTestPresenter(t)
	for _, name := range []string{"1.png", "2.png", "3.png"} {
		f := pngFile(t, name)
		rc, _ := f.Open()
		var buf bytes.Buffer
		buf.ReadFrom(rc)
		rc.Close()
		if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0644); err != nil {
			t.Fatal(err)
		}
	}
	a, err := album.FromDir(dir, "Holiday")
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	a.Interval = 7 * time.Second
	a.Transition = "random-exit"

	snap, err := p.OpenAlbum(context.Background(), a)
	if err != nil {
		t.Fatalf("OpenAlbum: %v", err)
	}
	if snap.Title != "Holiday" || snap.Interval != 7*time.Second || snap.Mode != effects.RandomizedExit {
		t.Errorf("album settings not applied: %+v", snap)
	}

	var events []playback.Event
	p.Controller().Subscribe(func(ev playback.Event) { events = append(events, ev) })
	fake.Advance(7 * time.Second)
	if len(events) != 1 || events[0].Transition.Mode != effects.RandomizedExit {
		t.Errorf("events %+v", events)
	}

	ev, err := p.Advance(-1)
	if err != nil || ev.Index != 0 {
		t.Errorf("manual back: %+v %v", ev, err)
	}
	playing, err := p.TogglePlay()
	if err != nil || playing {
		t.Errorf("toggle: %v %v", playing, err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.TransitionMode = "spin"
	if _, err := New(Options{Config: cfg}); err == nil {
		t.Error("expected config error")
	}
}
