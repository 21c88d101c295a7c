package video

import (
	"context"
	"fmt"
	"image"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/capture"
	"github.com/ivlev/slideshow/internal/clock"
	"github.com/ivlev/slideshow/internal/config"
	"github.com/ivlev/slideshow/internal/logging"
)

// FrameSource renders presentation frames. *renderer.Compositor implements it.
type FrameSource interface {
	Size() (int, int)
	Clock() clock.Clock
	Frame(at time.Time) *image.RGBA
	Release(frame *image.RGBA)
}

// SurfaceSource records the compositor: frames are piped to ffmpeg as raw
// RGBA at the capture frame rate and encoded to WebM.
type SurfaceSource struct {
	Frames FrameSource
	Params config.CaptureParams
	Run    Runner
	Logger *zap.Logger
}

func (s *SurfaceSource) Acquire(ctx context.Context, spec capture.Spec) (capture.Stream, error) {
	if s.Frames == nil {
		return nil, sourceError("acquire", fmt.Errorf("no surface to record"))
	}
	if s.Run == nil {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return nil, sourceError("acquire", err)
		}
	}
	logger := logging.OrNop(s.Logger).With(zap.String(logging.FieldJob, spec.Job.String()))

	w, h := s.Frames.Size()
	args := buildSurfaceArgs(w, h, s.Params)
	logger.Debug("starting surface capture", zap.Strings("args", args))

	stream, err := startFFmpeg(ctx, s.Run, args, logger)
	if err != nil {
		return nil, sourceError("acquire", err)
	}

	stop := make(chan struct{})
	fed := make(chan struct{})
	stream.feed = func() {
		close(stop)
		<-fed
	}
	go s.feedFrames(stream, stop, fed, logger)

	if err := stream.awaitStartup(ctx, startupWindow); err != nil {
		stream.Release(context.Background())
		return nil, sourceError("acquire", err)
	}
	return stream, nil
}

// feedFrames writes one frame per tick until stop is closed or ffmpeg stops
// reading.
func (s *SurfaceSource) feedFrames(stream *ffmpegStream, stop <-chan struct{}, fed chan<- struct{}, logger *zap.Logger) {
	defer close(fed)

	fps := s.Params.FPS
	if fps <= 0 {
		fps = 30
	}
	interval := time.Second / time.Duration(fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	clk := s.Frames.Clock()
	frames := 0
	for {
		frame := s.Frames.Frame(clk.Now())
		err := writeRawRGBA(stream.stdin, frame)
		s.Frames.Release(frame)
		if err != nil {
			logger.Debug("surface feed stopped", zap.Error(err), zap.Int("frames", frames))
			return
		}
		frames++

		select {
		case <-stop:
			return
		case <-stream.exited:
			return
		case <-ticker.C:
		}
	}
}

func buildSurfaceArgs(w, h int, p config.CaptureParams) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", fmt.Sprintf("%d", p.FPS),
		"-i", "-",
	}
	args = append(args, audioInput(p.AudioPath)...)
	args = append(args, "-map", "0:v")
	if p.AudioPath != "" {
		args = append(args, "-map", "1:a")
	}
	return append(args, encoderArgs(p, p.AudioPath != "")...)
}
