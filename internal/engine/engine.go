// Package engine wires the presenter: ingestion, the playback controller,
// the frame compositor and the capture recorder behind one facade.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/album"
	"github.com/ivlev/slideshow/internal/capture"
	"github.com/ivlev/slideshow/internal/clock"
	"github.com/ivlev/slideshow/internal/config"
	"github.com/ivlev/slideshow/internal/effects"
	"github.com/ivlev/slideshow/internal/logging"
	"github.com/ivlev/slideshow/internal/media"
	"github.com/ivlev/slideshow/internal/playback"
	"github.com/ivlev/slideshow/internal/renderer"
	"github.com/ivlev/slideshow/internal/system"
	"github.com/ivlev/slideshow/internal/video"
)

// Options inject collaborators. Zero values select the production ones.
type Options struct {
	Config     *config.Config
	Clock      clock.Clock
	Random     effects.RandomSource
	Converters media.Converters
	Source     capture.Source
	Sink       capture.Sink
	Probe      media.DurationProbe
	HandleDir  string
	Logger     *zap.Logger
}

// Presenter owns one controller and one recorder.
type Presenter struct {
	cfg        *config.Config
	mode       effects.Mode
	clock      clock.Clock
	store      *media.HandleStore
	ingestor   *media.Ingestor
	controller *playback.Controller
	compositor *renderer.Compositor
	recorder   *capture.Recorder
	source     capture.Source
	probe      media.DurationProbe
	logger     *zap.Logger
}

// New builds a presenter from opts.
func New(opts Options) (*Presenter, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	mode, err := effects.ParseMode(cfg.TransitionMode)
	if err != nil {
		return nil, err
	}

	logger := logging.OrNop(opts.Logger)
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	rnd := opts.Random
	if rnd == nil {
		if cfg.Seed != 0 {
			rnd = effects.NewSeededSource(cfg.Seed)
		} else {
			rnd = effects.NewTimeSource()
		}
	}
	converters := opts.Converters
	if converters == nil {
		converters = media.DefaultConverters(media.ConverterOptions{
			MaxWidth:  cfg.DisplayWidth,
			MaxHeight: cfg.DisplayHeight,
			Quality:   90,
		})
	}
	probe := opts.Probe
	if probe == nil {
		probe = system.GetAudioDuration
	}

	store, err := media.NewHandleStore(opts.HandleDir)
	if err != nil {
		return nil, err
	}

	p := &Presenter{
		cfg:    cfg,
		mode:   mode,
		clock:  clk,
		store:  store,
		probe:  probe,
		logger: logger,
	}

	workers := system.IngestWorkers(cfg.Workers)
	p.ingestor = media.NewIngestor(store, converters, workers, component(logger, "ingest"))

	planner := effects.NewPlanner(cfg.SlideDistance, nil, rnd)
	p.controller = playback.NewController(clk, planner, store, component(logger, "playback"))

	p.compositor, err = renderer.NewCompositor(renderer.Options{
		Width:          cfg.Width,
		Height:         cfg.Height,
		TransitionTime: cfg.TransitionTime,
	}, store, system.NewImagePool(), clk, component(logger, "renderer"))
	if err != nil {
		store.Close()
		return nil, err
	}
	p.controller.OnStart(p.compositor.Load)
	p.controller.Subscribe(p.compositor.OnAdvance)

	p.source = opts.Source
	sink := opts.Sink
	if sink == nil {
		sink = &capture.FileSink{Dir: cfg.OutputDir}
	}
	p.recorder, err = capture.NewRecorder(capture.Options{
		Source:       capture.SourceFunc(p.acquire),
		Sink:         sink,
		Clock:        clk,
		ArtifactName: cfg.ArtifactName,
		LockPath:     cfg.LockPath,
	}, component(logger, "capture"))
	if err != nil {
		store.Close()
		return nil, err
	}

	// Закрытие презентации: сначала дописываем запись, потом отпускаем кадры.
	p.controller.OnClose(func(ctx context.Context, _ playback.Snapshot) error {
		_, err := p.recorder.Stop(ctx)
		p.compositor.Unload()
		return err
	})

	if opts.Source == nil && !system.FFmpegAvailable() {
		logger.Warn("ffmpeg not found on PATH, recording is unavailable")
	}
	logger.Debug("presenter ready",
		zap.Int("workers", workers),
		zap.String("capture_source", cfg.CaptureSource),
		zap.Stringer("mode", mode),
	)
	return p, nil
}

func component(logger *zap.Logger, name string) *zap.Logger {
	return logger.With(zap.String(logging.FieldComponent, name))
}

// Config returns the effective configuration.
func (p *Presenter) Config() *config.Config { return p.cfg }

// Controller exposes the playback controller, e.g. for subscriptions.
func (p *Presenter) Controller() *playback.Controller { return p.controller }

// Compositor exposes the frame compositor.
func (p *Presenter) Compositor() *renderer.Compositor { return p.compositor }

// Recorder exposes the capture recorder.
func (p *Presenter) Recorder() *capture.Recorder { return p.recorder }

// Store exposes the handle store.
func (p *Presenter) Store() *media.HandleStore { return p.store }

// Ingest converts files without starting a presentation. The caller owns
// the returned assets and must release them with Release.
func (p *Presenter) Ingest(ctx context.Context, files []media.RawFile) ([]*media.Asset, error) {
	return p.ingestor.Ingest(ctx, files)
}

// Release frees assets obtained from Ingest.
func (p *Presenter) Release(assets []*media.Asset) int {
	return p.ingestor.Release(assets)
}

// SessionOptions override the configured presentation settings.
type SessionOptions struct {
	Title    string
	Interval time.Duration
	Mode     *effects.Mode
	Audio    *media.RawFile
}

// Open ingests files and starts presenting the ones that converted.
func (p *Presenter) Open(ctx context.Context, files []media.RawFile, so SessionOptions) (playback.Snapshot, error) {
	assets, err := p.ingestor.Ingest(ctx, files)
	if err != nil {
		return playback.Snapshot{}, err
	}

	var track *media.Soundtrack
	audio := so.Audio
	if audio == nil && p.cfg.AudioPath != "" {
		f := media.FileFromPath(p.cfg.AudioPath)
		audio = &f
	}
	if audio != nil && len(assets) > 0 {
		track, err = p.ingestor.IngestSoundtrack(ctx, *audio, p.probe)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				p.ingestor.Release(assets)
				return playback.Snapshot{}, ctxErr
			}
			p.logger.Warn("presenting without soundtrack", zap.Error(err))
		}
	}

	opts := playback.Options{
		Interval:   p.cfg.SlideInterval,
		Mode:       p.mode,
		Title:      p.cfg.Title,
		Soundtrack: track,
	}
	if so.Title != "" {
		opts.Title = so.Title
	}
	if so.Interval > 0 {
		opts.Interval = so.Interval
	}
	if so.Mode != nil {
		opts.Mode = *so.Mode
	}

	snap, err := p.controller.Start(assets, opts)
	if err != nil {
		p.ingestor.Release(assets)
		if track != nil {
			p.store.Release(track.Handle)
		}
		return playback.Snapshot{}, err
	}
	return snap, nil
}

// OpenAlbum presents an album manifest with its own settings.
func (p *Presenter) OpenAlbum(ctx context.Context, a *album.Album) (playback.Snapshot, error) {
	so := SessionOptions{Title: a.Title, Interval: a.Interval}
	if a.Transition != "" {
		mode, err := effects.ParseMode(a.Transition)
		if err != nil {
			return playback.Snapshot{}, err
		}
		so.Mode = &mode
	}
	if f, ok := a.AudioFile(); ok {
		so.Audio = &f
	}
	return p.Open(ctx, a.Files(), so)
}

// Snapshot returns the active session, if any.
func (p *Presenter) Snapshot() (playback.Snapshot, bool) {
	return p.controller.Snapshot()
}

// Advance navigates by direction as a user gesture.
func (p *Presenter) Advance(direction int) (playback.Event, error) {
	return p.controller.Advance(direction)
}

// TogglePlay pauses or resumes autoplay.
func (p *Presenter) TogglePlay() (bool, error) {
	return p.controller.TogglePlay()
}

// Record starts capturing the active presentation for its full cycle.
func (p *Presenter) Record(ctx context.Context) (*capture.Job, error) {
	snap, ok := p.controller.Snapshot()
	if !ok {
		return p.recorder.Start(ctx, nil, p.cfg.SlideInterval)
	}
	return p.recorder.Start(ctx, snap, snap.Interval)
}

// StopRecording finalizes the active recording early.
func (p *Presenter) StopRecording(ctx context.Context) (*capture.Job, error) {
	return p.recorder.Stop(ctx)
}

// CloseSession leaves presentation mode. An active recording is finalized
// first; the session's handles are released afterwards.
func (p *Presenter) CloseSession(ctx context.Context) error {
	return p.controller.Close(ctx)
}

// Close ends any session and removes every handle.
func (p *Presenter) Close(ctx context.Context) error {
	err := p.controller.Close(ctx)
	if rerr := p.recorder.Close(ctx); rerr != nil {
		err = errors.Join(err, rerr)
	}
	if serr := p.store.Close(); serr != nil && !errors.Is(serr, os.ErrNotExist) {
		err = errors.Join(err, serr)
	}
	return err
}

// acquire picks the configured capture source, with the session soundtrack
// muxed in when there is one.
func (p *Presenter) acquire(ctx context.Context, spec capture.Spec) (capture.Stream, error) {
	if p.source != nil {
		return p.source.Acquire(ctx, spec)
	}

	params := p.cfg.Capture()
	params.AudioPath = ""
	if snap, ok := p.controller.Snapshot(); ok && snap.Soundtrack != nil {
		if path, err := p.store.Path(snap.Soundtrack.Handle); err == nil {
			params.AudioPath = path
		}
	}
	if params.Encoder == "" {
		params.Encoder = system.GetBestWebMEncoder(ctx)
	}

	var src capture.Source
	switch p.cfg.CaptureSource {
	case config.SourceScreen:
		src = &video.ScreenSource{Params: params, Logger: component(p.logger, "video")}
	default:
		src = &video.SurfaceSource{Frames: p.compositor, Params: params, Logger: component(p.logger, "video")}
	}
	return src.Acquire(ctx, spec)
}
