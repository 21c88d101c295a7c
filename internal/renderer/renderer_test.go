package renderer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/slideshow/internal/effects"
	"github.com/ivlev/slideshow/internal/media"
	"github.com/ivlev/slideshow/internal/playback"
)

func TestIncomingPose(t *testing.T) {
	tr := effects.Transition{Mode: effects.Directional, Direction: 1, Vector: effects.Vector{DX: 1000}}

	tests := []struct {
		progress float64
		wantX    float64
	}{
		{0.0, 1000},
		{0.5, 500},
		{1.0, 0},
		{2.0, 0},
	}
	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			p := IncomingPose(tr, tt.progress, 1)
			if math.Abs(p.X-tt.wantX) > 0.001 {
				t.Errorf("progress %.1f: expected x %.1f, got %.2f", tt.progress, tt.wantX, p.X)
			}
		})
	}
}

func TestOutgoingPoseMovesOpposite(t *testing.T) {
	tr := effects.Transition{Mode: effects.Directional, Direction: -1, Vector: effects.Vector{DX: -1000}}
	p := OutgoingPose(tr, 1, 0.5)
	if p.X != 500 || p.Opacity != 0 {
		t.Errorf("unexpected outgoing end pose %+v", p)
	}
	start := OutgoingPose(tr, 0, 0.5)
	if start != rest {
		t.Errorf("outgoing start pose %+v", start)
	}
}

func TestRandomExitPoses(t *testing.T) {
	tr := effects.Transition{Mode: effects.RandomizedExit, Vector: effects.DefaultExitPalette[1]}
	out := OutgoingPose(tr, 1, 1)
	if out.X != 1200 || out.Y != -1200 || out.Rotation != 90 || math.Abs(out.Scale-0.1) > 1e-9 {
		t.Errorf("exit pose %+v", out)
	}
	in := IncomingPose(tr, 0, 1)
	if in.X != 0 || in.Y != 0 || math.Abs(in.Scale-0.1) > 1e-9 {
		t.Errorf("pop start pose %+v", in)
	}
	peak := IncomingPose(tr, 0.7, 1)
	if math.Abs(peak.Scale-1.2) > 1e-9 {
		t.Errorf("pop peak scale %.3f", peak.Scale)
	}
}

func TestEaseInOutCubic(t *testing.T) {
	if easeInOutCubic(0) != 0 || easeInOutCubic(1) != 1 || easeInOutCubic(0.5) != 0.5 {
		t.Error("easing endpoints are wrong")
	}
	prev := 0.0
	for i := 1; i <= 100; i++ {
		v := easeInOutCubic(float64(i) / 100)
		if v < prev {
			t.Fatalf("easing not monotonic at %d", i)
		}
		prev = v
	}
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#f8a5c2")
	if err != nil {
		t.Fatal(err)
	}
	if c != (color.RGBA{R: 0xf8, G: 0xa5, B: 0xc2, A: 255}) {
		t.Errorf("got %+v", c)
	}
	if short, _ := ParseHexColor("#fff"); short != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("short form %+v", short)
	}
	if _, err := ParseHexColor("nope"); err == nil {
		t.Error("expected error")
	}
}

type memOpener map[media.Handle][]byte

func (m memOpener) Open(h media.Handle) (io.ReadCloser, error) {
	data, ok := m[h]
	if !ok {
		return nil, media.ErrUnknownHandle
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCompositorFrames(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	opener := memOpener{"blob:a": solidPNG(t, red), "blob:b": solidPNG(t, blue)}

	comp, err := NewCompositor(Options{Width: 200, Height: 100, TransitionTime: time.Second}, opener, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}

	// No session: background only.
	frame := comp.Frame(time.Now())
	bg0, _ := ParseHexColor(DefaultBackgrounds[0])
	if got := frame.RGBAAt(100, 50); got != bg0 {
		t.Errorf("empty frame center %+v", got)
	}
	comp.Release(frame)

	id := uuid.New()
	assets := []*media.Asset{
		{ID: uuid.New(), Handle: "blob:a", Name: "a.png"},
		{ID: uuid.New(), Handle: "blob:b", Name: "b.png"},
	}
	comp.Load(playback.Snapshot{ID: id, Assets: assets})

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	frame = comp.Frame(at)
	if got := frame.RGBAAt(100, 50); got != red {
		t.Errorf("first asset center %+v", got)
	}
	if got := frame.RGBAAt(2, 2); got != bg0 {
		t.Errorf("corner should show background, got %+v", got)
	}
	comp.Release(frame)

	comp.OnAdvance(playback.Event{
		Session:    id,
		Seq:        1,
		Previous:   0,
		Index:      1,
		Direction:  1,
		Transition: effects.Transition{Mode: effects.Directional, Direction: 1, Vector: effects.Vector{DX: 1000}},
		At:         at,
	})

	// After the transition settles the second asset is centered on the
	// second background.
	frame = comp.Frame(at.Add(2 * time.Second))
	if got := frame.RGBAAt(100, 50); got != blue {
		t.Errorf("second asset center %+v", got)
	}
	bg1, _ := ParseHexColor(DefaultBackgrounds[1])
	if got := frame.RGBAAt(2, 2); got != bg1 {
		t.Errorf("second background %+v", got)
	}
	comp.Release(frame)

	// Events from another session are ignored.
	comp.OnAdvance(playback.Event{Session: uuid.New(), Seq: 2, Previous: 1, Index: 0, At: at})
	frame = comp.Frame(at.Add(3 * time.Second))
	if got := frame.RGBAAt(100, 50); got != blue {
		t.Errorf("foreign event changed the frame: %+v", got)
	}
	comp.Release(frame)
}

func TestCompositorKeepsNewestPosition(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	opener := memOpener{"blob:a": solidPNG(t, red), "blob:b": solidPNG(t, blue), "blob:c": solidPNG(t, green)}

	comp, err := NewCompositor(Options{Width: 200, Height: 100, TransitionTime: time.Second}, opener, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewCompositor: %v", err)
	}
	id := uuid.New()
	comp.Load(playback.Snapshot{ID: id, Assets: []*media.Asset{
		{Handle: "blob:a"}, {Handle: "blob:b"}, {Handle: "blob:c"},
	}})

	// A manual 0->1 and a timer 1->2 delivered in reverse order.
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	comp.OnAdvance(playback.Event{Session: id, Seq: 2, Previous: 1, Index: 2, Direction: 1, At: at})
	comp.OnAdvance(playback.Event{Session: id, Seq: 1, Previous: 0, Index: 1, Direction: 1, At: at})

	frame := comp.Frame(at.Add(2 * time.Second))
	defer comp.Release(frame)
	if got := frame.RGBAAt(100, 50); got != green {
		t.Errorf("stale event applied, center %+v", got)
	}
}

func TestCompositorSkipsUnreadableAsset(t *testing.T) {
	comp, err := NewCompositor(Options{Width: 64, Height: 64}, memOpener{}, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	comp.Load(playback.Snapshot{ID: uuid.New(), Assets: []*media.Asset{{Handle: "blob:missing"}}})
	frame := comp.Frame(time.Now())
	bg0, _ := ParseHexColor(DefaultBackgrounds[0])
	if got := frame.RGBAAt(32, 32); got != bg0 {
		t.Errorf("expected background, got %+v", got)
	}
}

func TestNewCompositorValidates(t *testing.T) {
	if _, err := NewCompositor(Options{}, nil, nil, nil, nil); err == nil {
		t.Error("expected size error")
	}
	if _, err := NewCompositor(Options{Width: 1, Height: 1, Backgrounds: []string{"#zzz"}}, nil, nil, nil, nil); err == nil {
		t.Error("expected color error")
	}
}
