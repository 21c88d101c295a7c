package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/album"
	"github.com/ivlev/slideshow/internal/capture"
	"github.com/ivlev/slideshow/internal/effects"
)

// sessionFlags override album settings from the command line.
type sessionFlags struct {
	title      string
	interval   time.Duration
	transition string
	audio      string
}

func (f *sessionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Title shown over the slides")
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "Time each slide stays on screen (default from config)")
	cmd.Flags().StringVar(&f.transition, "transition", "", "Transition mode: directional or random-exit")
	cmd.Flags().StringVar(&f.audio, "audio", "", "Soundtrack file")
}

func (f *sessionFlags) apply(a *album.Album) error {
	if f.title != "" {
		a.Title = f.title
	}
	if f.interval < 0 {
		return fmt.Errorf("interval must be positive, got %s", f.interval)
	}
	if f.interval > 0 {
		a.Interval = f.interval
	}
	if f.transition != "" {
		if _, err := effects.ParseMode(f.transition); err != nil {
			return err
		}
		a.Transition = f.transition
	}
	if f.audio != "" {
		// путь из командной строки считается от текущей папки, а не от альбома
		abs, err := filepath.Abs(f.audio)
		if err != nil {
			return err
		}
		a.Audio = abs
	}
	return nil
}

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var flags sessionFlags

	cmd := &cobra.Command{
		Use:   "record [dir | album.yaml | files...]",
		Short: "Record one full cycle of a presentation to WebM",
		Long: "Record presents the slides headlessly and captures one full cycle, " +
			"slide count times the interval. Interrupting finalizes what was recorded so far.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadAlbum(args)
			if err != nil {
				return err
			}
			if err := flags.apply(a); err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			presenter, logger, cleanup, err := ctx.openPresenter(signalCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			snap, err := presenter.OpenAlbum(signalCtx, a)
			if err != nil {
				return err
			}
			job, err := presenter.Record(signalCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recording %d slides for %s\n", snap.Len(), job.Planned)

			if err := job.Wait(signalCtx); errors.Is(err, context.Canceled) {
				logger.Info("recording interrupted, finalizing")
			}
			// Сессию закрываем даже после сигнала: запись дописывается в Close.
			if err := presenter.CloseSession(context.WithoutCancel(signalCtx)); err != nil {
				return err
			}
			return reportJob(cmd.OutOrStdout(), job, logger)
		},
	}
	flags.bind(cmd)
	return cmd
}

func reportJob(w io.Writer, job *capture.Job, logger *zap.Logger) error {
	if job == nil {
		return nil
	}
	if job.Status() != capture.StatusCompleted {
		return fmt.Errorf("recording %s: %w", job.Status(), job.Err())
	}
	art, _ := job.Artifact()
	logger.Debug("artifact delivered", zap.String("path", art.Path), zap.Int64("bytes", art.Size))
	fmt.Fprintf(w, "Saved %s (%s, %s)\n", art.Path, humanize.Bytes(uint64(art.Size)),
		job.EndedAt().Sub(job.StartedAt()).Round(time.Millisecond))
	return nil
}
