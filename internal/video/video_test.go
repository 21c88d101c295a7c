package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/slideshow/internal/capture"
	"github.com/ivlev/slideshow/internal/clock"
	"github.com/ivlev/slideshow/internal/config"
	"github.com/ivlev/slideshow/internal/faults"
)

func init() {
	startupWindow = 100 * time.Millisecond
}

// TestHelperProcess stands in for ffmpeg when invoked through helperRunner.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	mode := os.Args[len(os.Args)-1]
	switch mode {
	case "encode":
		n, _ := io.Copy(io.Discard, os.Stdin)
		fmt.Fprintf(os.Stdout, "webm:%d", n)
		os.Exit(0)
	case "deny":
		fmt.Fprint(os.Stderr, "Cannot open display :0.0, error 1")
		os.Exit(1)
	}
	os.Exit(2)
}

func helperRunner(mode string, captured *[]string) Runner {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess", "--", mode)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
}

type testFrames struct {
	mu     sync.Mutex
	frames int
}

func (f *testFrames) Size() (int, int)    { return 4, 2 }
func (f *testFrames) Clock() clock.Clock  { return clock.New() }
func (f *testFrames) Release(*image.RGBA) {}
func (f *testFrames) Frame(time.Time) *image.RGBA {
	f.mu.Lock()
	f.frames++
	f.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, 4, 2))
}

func (f *testFrames) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func drain(s capture.Stream) <-chan string {
	out := make(chan string, 1)
	go func() {
		var sb strings.Builder
		for chunk := range s.Chunks() {
			sb.Write(chunk)
		}
		out <- sb.String()
	}()
	return out
}

func TestSurfaceSourceStreamsEncodedOutput(t *testing.T) {
	frames := &testFrames{}
	var args []string
	src := &SurfaceSource{
		Frames: frames,
		Params: config.CaptureParams{FPS: 50, Encoder: "libvpx", Quality: 10},
		Run:    helperRunner("encode", &args),
	}
	stream, err := src.Acquire(context.Background(), capture.Spec{Job: uuid.New(), Duration: time.Second})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	out := drain(stream)
	time.Sleep(50 * time.Millisecond)

	if err := stream.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := stream.Release(context.Background()); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	got := <-out
	n := frames.count()
	if n == 0 {
		t.Fatal("no frames written")
	}
	// Every written frame is 4x2 RGBA.
	want := fmt.Sprintf("webm:%d", n*4*2*4)
	if got != want {
		t.Errorf("stream %q, want %q", got, want)
	}
	if args[0] != "ffmpeg" {
		t.Errorf("command %v", args)
	}
}

func TestScreenSourceDenied(t *testing.T) {
	// Long enough for the helper to start and exit.
	prev := startupWindow
	startupWindow = 10 * time.Second
	t.Cleanup(func() { startupWindow = prev })

	src := &ScreenSource{
		Params: config.CaptureParams{Width: 640, Height: 360, FPS: 30, Quality: 10},
		Run:    helperRunner("deny", nil),
		GOOS:   "linux",
	}
	_, err := src.Acquire(context.Background(), capture.Spec{Duration: time.Second})
	if !errors.Is(err, faults.ErrCaptureSource) {
		t.Fatalf("expected ErrCaptureSource, got %v", err)
	}
	if !strings.Contains(err.Error(), "Cannot open display") {
		t.Errorf("error lacks ffmpeg output: %v", err)
	}
}

func TestSurfaceSourceWithoutFrames(t *testing.T) {
	_, err := (&SurfaceSource{}).Acquire(context.Background(), capture.Spec{})
	if !errors.Is(err, faults.ErrCaptureSource) {
		t.Errorf("expected ErrCaptureSource, got %v", err)
	}
}

func TestBuildSurfaceArgs(t *testing.T) {
	p := config.CaptureParams{FPS: 30, Encoder: "libvpx-vp9", Quality: 32, AudioPath: "/music/song.mp3"}
	args := strings.Join(buildSurfaceArgs(1280, 720, p), " ")

	for _, want := range []string{
		"-f rawvideo -pixel_format rgba -video_size 1280x720 -framerate 30 -i -",
		"-stream_loop -1 -i /music/song.mp3",
		"-map 0:v -map 1:a",
		"-c:v libvpx-vp9",
		"-crf 32 -b:v 0",
		"-c:a libopus",
		"-shortest",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("args missing %q: %s", want, args)
		}
	}
	if !strings.HasSuffix(args, "-f webm -") {
		t.Errorf("output is not webm on stdout: %s", args)
	}

	silent := strings.Join(buildSurfaceArgs(320, 240, config.CaptureParams{FPS: 24}), " ")
	if !strings.Contains(silent, "-an") || strings.Contains(silent, "-map 1:a") {
		t.Errorf("silent args: %s", silent)
	}
	if !strings.Contains(silent, "-c:v libvpx") {
		t.Errorf("default encoder: %s", silent)
	}
}

func TestBuildScreenArgs(t *testing.T) {
	p := config.CaptureParams{Width: 1280, Height: 720, FPS: 30, Quality: 10, ScreenInput: ":1.0"}

	tests := []struct {
		goos string
		want string
	}{
		{"linux", "-f x11grab -framerate 30 -draw_mouse 0 -video_size 1280x720 -i :1.0"},
		{"darwin", "-f avfoundation -framerate 30 -capture_cursor 0 -i :1.0:none"},
		{"windows", "-f gdigrab -framerate 30 -draw_mouse 0 -i :1.0"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			args, err := buildScreenArgs(tt.goos, p, 8*time.Second)
			if err != nil {
				t.Fatal(err)
			}
			joined := strings.Join(args, " ")
			if !strings.Contains(joined, tt.want) {
				t.Errorf("args %s", joined)
			}
			if !strings.Contains(joined, "-t 13.000") {
				t.Errorf("missing duration cap: %s", joined)
			}
		})
	}

	if _, err := buildScreenArgs("plan9", p, time.Second); err == nil {
		t.Error("expected unsupported platform error")
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{max: 5}
	tb.Write([]byte("hello "))
	tb.Write([]byte("world"))
	if got := tb.String(); got != "world" {
		t.Errorf("tail %q", got)
	}
}
