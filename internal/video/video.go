// Package video implements capture sources on top of ffmpeg. Every source
// produces a WebM stream on ffmpeg's stdout that is cut into chunks for the
// capture recorder.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/config"
	"github.com/ivlev/slideshow/internal/faults"
)

// chunkSize is the read size for stdout; one read becomes one chunk.
const chunkSize = 64 * 1024

// startupWindow is how long ffmpeg may take to fail before a source is
// considered acquired.
var startupWindow = 1500 * time.Millisecond

// Runner starts commands. Tests replace it to avoid spawning ffmpeg.
type Runner func(ctx context.Context, name string, args ...string) *exec.Cmd

// ffmpegStream is a running ffmpeg process whose stdout carries WebM.
type ffmpegStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	chunks chan []byte
	stderr *tailBuffer
	logger *zap.Logger

	// feed stops the frame writer, if any, and returns when it has exited.
	feed func()
	// interactive streams are stopped by sending "q" on stdin.
	interactive bool

	readDone chan struct{}
	exited   chan struct{}
	waitErr  error

	releaseOnce sync.Once
	releaseErr  error
}

func startFFmpeg(ctx context.Context, run Runner, args []string, logger *zap.Logger) (*ffmpegStream, error) {
	if run == nil {
		run = exec.CommandContext
	}
	// The process outlives the Acquire call, so it is tied to its own
	// lifetime rather than to ctx.
	cmd := run(context.WithoutCancel(ctx), "ffmpeg", args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	tail := &tailBuffer{max: 4096}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	s := &ffmpegStream{
		cmd:      cmd,
		stdin:    stdin,
		chunks:   make(chan []byte, 64),
		stderr:   tail,
		logger:   logger,
		feed:     func() {},
		readDone: make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go s.read(stdout)
	go func() {
		<-s.readDone
		s.waitErr = cmd.Wait()
		close(s.exited)
	}()
	return s, nil
}

func (s *ffmpegStream) read(r io.Reader) {
	defer close(s.readDone)
	defer close(s.chunks)
	for {
		buf := make([]byte, chunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			s.chunks <- buf[:n]
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("ffmpeg stdout closed", zap.Error(err))
			}
			return
		}
	}
}

// awaitStartup fails if ffmpeg exits within the startup window, which is
// how a denied or missing display shows up.
func (s *ffmpegStream) awaitStartup(ctx context.Context, window time.Duration) error {
	t := time.NewTimer(window)
	defer t.Stop()
	select {
	case <-s.exited:
		msg := strings.TrimSpace(s.stderr.String())
		if msg == "" && s.waitErr != nil {
			msg = s.waitErr.Error()
		}
		if msg == "" {
			msg = "ffmpeg exited during startup"
		}
		return errors.New(msg)
	case <-ctx.Done():
		s.kill()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *ffmpegStream) Chunks() <-chan []byte { return s.chunks }

// Release stops the frame feed, asks ffmpeg to finish the container and
// waits for the process to exit. If ctx ends first the process is killed.
func (s *ffmpegStream) Release(ctx context.Context) error {
	s.releaseOnce.Do(func() {
		s.feed()
		if s.interactive {
			io.WriteString(s.stdin, "q")
		}
		s.stdin.Close()

		select {
		case <-s.exited:
		case <-ctx.Done():
			s.kill()
			<-s.exited
			s.releaseErr = ctx.Err()
			return
		}
		if s.waitErr != nil {
			s.releaseErr = fmt.Errorf("ffmpeg wait error: %w: %s", s.waitErr, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.releaseErr
}

func (s *ffmpegStream) kill() {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(bounds)
		draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}

// encoderArgs returns the WebM video/audio encoding arguments.
func encoderArgs(p config.CaptureParams, withAudio bool) []string {
	encoder := p.Encoder
	if encoder == "" {
		encoder = "libvpx"
	}
	args := []string{
		"-c:v", encoder,
		"-pix_fmt", "yuv420p",
		"-r", fmt.Sprintf("%d", p.FPS),
	}

	// Качество в зависимости от энкодера
	switch encoder {
	case "libvpx-vp9":
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-b:v", "0", "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1")
	default: // libvpx
		args = append(args, "-crf", fmt.Sprintf("%d", p.Quality), "-b:v", "2M", "-deadline", "realtime", "-cpu-used", "8")
	}

	if withAudio {
		args = append(args, "-c:a", "libopus", "-b:a", "128k", "-shortest")
	} else {
		args = append(args, "-an")
	}
	return append(args, "-f", "webm", "-")
}

// audioInput loops the soundtrack for the whole recording.
func audioInput(path string) []string {
	if path == "" {
		return nil
	}
	return []string{"-stream_loop", "-1", "-i", path}
}

func sourceError(op string, err error) error {
	return faults.Wrap(faults.ErrCaptureSource, "video", op, "", err)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
