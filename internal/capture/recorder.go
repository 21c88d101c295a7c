package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/clock"
	"github.com/ivlev/slideshow/internal/faults"
	"github.com/ivlev/slideshow/internal/logging"
	"github.com/ivlev/slideshow/internal/metrics"
)

// DefaultArtifactName is the file name of the recorded presentation.
const DefaultArtifactName = "Memories.webm"

// ErrStopped is returned by Start when the job was stopped while its source
// was still being acquired.
var ErrStopped = errors.New("recording stopped before it began")

// Sequence is the view of a session capture needs: how many assets it has.
type Sequence interface {
	Len() int
}

// Options configure a Recorder.
type Options struct {
	Source       Source
	Sink         Sink
	Clock        clock.Clock
	ArtifactName string
	// LockPath is an advisory lock file held while a job records, so that
	// two processes on one host cannot record at once. Empty disables it.
	LockPath string
}

// Recorder runs capture jobs one at a time.
type Recorder struct {
	source       Source
	sink         Sink
	clock        clock.Clock
	sched        *clock.Scheduler
	artifactName string
	lockPath     string
	logger       *zap.Logger

	mu     sync.Mutex
	active *Job
	lock   *flock.Flock
}

// NewRecorder validates opts and returns an idle recorder.
func NewRecorder(opts Options, logger *zap.Logger) (*Recorder, error) {
	if opts.Source == nil {
		return nil, errors.New("capture source is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("capture sink is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.ArtifactName == "" {
		opts.ArtifactName = DefaultArtifactName
	}
	return &Recorder{
		source:       opts.Source,
		sink:         opts.Sink,
		clock:        opts.Clock,
		sched:        clock.NewScheduler(opts.Clock),
		artifactName: opts.ArtifactName,
		lockPath:     opts.LockPath,
		logger:       logging.OrNop(logger),
	}, nil
}

// Active returns the job that is acquiring, recording or finalizing.
func (r *Recorder) Active() *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start records session for len(session) × perAsset. A job whose source
// cannot be acquired is returned Aborted together with the error.
func (r *Recorder) Start(ctx context.Context, session Sequence, perAsset time.Duration) (*Job, error) {
	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		metrics.CaptureRejectedTotal.Inc()
		return nil, faults.Wrap(faults.ErrConflict, "capture", "start", "a recording is already in progress", nil)
	}
	if session == nil || session.Len() == 0 {
		r.mu.Unlock()
		return nil, faults.Wrap(faults.ErrPrecondition, "capture", "start", "nothing to record", nil)
	}
	if perAsset <= 0 {
		r.mu.Unlock()
		return nil, faults.Wrap(faults.ErrPrecondition, "capture", "start", fmt.Sprintf("invalid per-asset duration %v", perAsset), nil)
	}
	if err := r.lockHostLocked(); err != nil {
		r.mu.Unlock()
		metrics.CaptureRejectedTotal.Inc()
		return nil, err
	}
	job := newJob(session.Len(), perAsset)
	r.active = job
	r.mu.Unlock()

	log := r.logger.With(zap.String(logging.FieldJob, job.ID.String()))

	stream, err := r.source.Acquire(ctx, Spec{Job: job.ID, Duration: job.Planned})
	if err != nil {
		if !errors.Is(err, faults.ErrCaptureSource) {
			err = faults.Wrap(faults.ErrCaptureSource, "capture", "acquire", "", err)
		}
		job.finish(StatusAborted, nil, err, r.clock.Now())
		r.release(job)
		metrics.CaptureJobsTotal.WithLabelValues(StatusAborted.String()).Inc()
		log.Warn("capture source unavailable", zap.Error(err))
		return job, err
	}

	job.mu.Lock()
	if job.cancelled {
		job.mu.Unlock()
		if rerr := stream.Release(ctx); rerr != nil {
			log.Warn("capture source did not stop cleanly", zap.Error(rerr))
		}
		job.finish(StatusAborted, nil, ErrStopped, r.clock.Now())
		r.release(job)
		metrics.CaptureJobsTotal.WithLabelValues(StatusAborted.String()).Inc()
		log.Info("recording stopped while acquiring source")
		return job, ErrStopped
	}
	job.stream = stream
	job.status = StatusRecording
	job.startedAt = r.clock.Now()
	job.pumpDone = make(chan struct{})
	job.mu.Unlock()

	go pump(job, stream)

	r.sched.Arm(job.Planned, func(tok clock.Token) {
		if !r.sched.Fired(tok) {
			return
		}
		if _, err := r.Stop(context.Background()); err != nil {
			log.Error("automatic stop failed", zap.Error(err))
		}
	})
	metrics.CaptureRecording.Set(1)

	log.Info("recording started",
		zap.Int("assets", job.Assets),
		zap.Duration("planned", job.Planned),
	)
	return job, nil
}

// Stop finalizes the recording job. It is a no-op, returning the current
// job (or nil) and no error, when nothing is recording. A job still
// acquiring its source is cancelled; Stop waits until Start has released
// the source and aborted it, or until ctx ends.
func (r *Recorder) Stop(ctx context.Context) (*Job, error) {
	r.mu.Lock()
	job := r.active
	if job == nil {
		r.mu.Unlock()
		return nil, nil
	}
	job.mu.Lock()
	if job.status == StatusIdle {
		job.cancelled = true
		job.mu.Unlock()
		r.mu.Unlock()
		select {
		case <-job.Done():
			return job, nil
		case <-ctx.Done():
			return job, ctx.Err()
		}
	}
	if job.status != StatusRecording {
		job.mu.Unlock()
		r.mu.Unlock()
		return job, nil
	}
	job.status = StatusFinalizing
	stream := job.stream
	job.mu.Unlock()
	r.sched.Disarm()
	r.mu.Unlock()

	err := r.finalize(ctx, job, stream)
	r.release(job)
	return job, err
}

// Close stops an active recording, finalizing what has been buffered.
func (r *Recorder) Close(ctx context.Context) error {
	_, err := r.Stop(ctx)
	return err
}

func (r *Recorder) finalize(ctx context.Context, job *Job, stream Stream) error {
	log := r.logger.With(zap.String(logging.FieldJob, job.ID.String()))

	if err := stream.Release(ctx); err != nil {
		log.Warn("capture source did not stop cleanly", zap.Error(err))
	}
	select {
	case <-job.pumpDone:
	case <-ctx.Done():
		err := faults.Wrap(faults.ErrCaptureSource, "capture", "finalize", "source did not drain", ctx.Err())
		job.finish(StatusAborted, nil, err, r.clock.Now())
		metrics.CaptureJobsTotal.WithLabelValues(StatusAborted.String()).Inc()
		return err
	}

	chunks := job.takeChunks()
	artifact, err := r.sink.Deliver(ctx, r.artifactName, chunks)
	if err != nil {
		err = fmt.Errorf("deliver %s: %w", r.artifactName, err)
		job.finish(StatusAborted, nil, err, r.clock.Now())
		metrics.CaptureJobsTotal.WithLabelValues(StatusAborted.String()).Inc()
		log.Error("could not assemble recording", zap.Error(err))
		return err
	}

	job.finish(StatusCompleted, &artifact, nil, r.clock.Now())
	metrics.CaptureJobsTotal.WithLabelValues(StatusCompleted.String()).Inc()
	log.Info("recording completed",
		zap.String(logging.FieldArtifact, artifact.Path),
		zap.Int64(logging.FieldBytes, artifact.Size),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// release clears the active slot and the host lock once job is terminal.
func (r *Recorder) release(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != job {
		return
	}
	r.active = nil
	if r.lock != nil {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn("could not release capture lock", zap.String("path", r.lockPath), zap.Error(err))
		}
		r.lock = nil
	}
	metrics.CaptureRecording.Set(0)
}

func (r *Recorder) lockHostLocked() error {
	if r.lockPath == "" {
		return nil
	}
	fl := flock.New(r.lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return faults.Wrap(faults.ErrCaptureSource, "capture", "lock", r.lockPath, err)
	}
	if !ok {
		return faults.Wrap(faults.ErrConflict, "capture", "lock", "another process is recording", nil)
	}
	r.lock = fl
	return nil
}

func pump(job *Job, stream Stream) {
	defer close(job.pumpDone)
	for chunk := range stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		job.append(chunk)
		metrics.CaptureBytesTotal.Add(float64(len(chunk)))
	}
}
