package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/capture"
	"github.com/ivlev/slideshow/internal/config"
	"github.com/ivlev/slideshow/internal/logging"
)

// ScreenSource grabs the desktop with the platform's ffmpeg grabber.
type ScreenSource struct {
	Params config.CaptureParams
	Run    Runner
	Logger *zap.Logger
	// GOOS overrides runtime.GOOS when choosing the grabber.
	GOOS string
}

func (s *ScreenSource) Acquire(ctx context.Context, spec capture.Spec) (capture.Stream, error) {
	if s.Run == nil {
		if _, err := exec.LookPath("ffmpeg"); err != nil {
			return nil, sourceError("acquire", err)
		}
	}
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	args, err := buildScreenArgs(goos, s.Params, spec.Duration)
	if err != nil {
		return nil, sourceError("acquire", err)
	}

	logger := logging.OrNop(s.Logger).With(zap.String(logging.FieldJob, spec.Job.String()))
	logger.Debug("starting screen capture", zap.String("os", goos), zap.Strings("args", args))

	stream, err := startFFmpeg(ctx, s.Run, args, logger)
	if err != nil {
		return nil, sourceError("acquire", err)
	}
	stream.interactive = true

	if err := stream.awaitStartup(ctx, startupWindow); err != nil {
		stream.Release(context.Background())
		return nil, sourceError("grab", err)
	}
	return stream, nil
}

// buildScreenArgs selects x11grab, avfoundation or gdigrab. The grab is
// capped a little past the planned duration in case the stop never arrives.
func buildScreenArgs(goos string, p config.CaptureParams, planned time.Duration) ([]string, error) {
	fps := fmt.Sprintf("%d", p.FPS)
	args := []string{"-hide_banner", "-loglevel", "error"}

	switch goos {
	case "linux", "freebsd", "openbsd":
		input := p.ScreenInput
		if input == "" {
			input = os.Getenv("DISPLAY")
		}
		if input == "" {
			input = ":0.0"
		}
		args = append(args, "-f", "x11grab", "-framerate", fps, "-draw_mouse", "0",
			"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height), "-i", input)
	case "darwin":
		input := p.ScreenInput
		if input == "" {
			input = "1"
		}
		args = append(args, "-f", "avfoundation", "-framerate", fps, "-capture_cursor", "0",
			"-i", input+":none")
	case "windows":
		input := p.ScreenInput
		if input == "" {
			input = "desktop"
		}
		args = append(args, "-f", "gdigrab", "-framerate", fps, "-draw_mouse", "0", "-i", input)
	default:
		return nil, fmt.Errorf("screen capture is not supported on %s", goos)
	}

	args = append(args, audioInput(p.AudioPath)...)
	args = append(args, "-map", "0:v")
	if p.AudioPath != "" {
		args = append(args, "-map", "1:a")
	}
	if planned > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", (planned+5*time.Second).Seconds()))
	}
	args = append(args, "-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		p.Width, p.Height, p.Width, p.Height))
	return append(args, encoderArgs(p, p.AudioPath != "")...), nil
}
