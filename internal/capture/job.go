// Package capture records a presentation into a single video artifact.
//
// A Recorder runs at most one Job. The job acquires a Source, buffers the
// chunks it emits for a duration derived from the session length, then
// hands the buffer to a Sink that assembles the artifact.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of a capture job.
type Status int

const (
	StatusIdle Status = iota
	StatusRecording
	StatusFinalizing
	StatusCompleted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRecording:
		return "recording"
	case StatusFinalizing:
		return "finalizing"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether s is Completed or Aborted.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusAborted }

// Job is one recording. Planned is fixed when the job starts.
type Job struct {
	ID      uuid.UUID
	Planned time.Duration
	Assets  int

	mu        sync.Mutex
	status    Status
	startedAt time.Time
	endedAt   time.Time
	artifact  *Artifact
	err       error
	chunks    [][]byte
	bytes     int64
	stream    Stream
	cancelled bool // Stop пришёл, пока источник ещё захватывался
	pumpDone  chan struct{}
	done      chan struct{}
}

func newJob(assets int, perAsset time.Duration) *Job {
	return &Job{
		ID:      uuid.New(),
		Planned: time.Duration(assets) * perAsset,
		Assets:  assets,
		status:  StatusIdle,
		done:    make(chan struct{}),
	}
}

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// StartedAt is when buffering began; zero if the source was never acquired.
func (j *Job) StartedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.startedAt
}

// EndedAt is when the job reached a terminal status.
func (j *Job) EndedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.endedAt
}

// Artifact returns the output once the job has completed.
func (j *Job) Artifact() (Artifact, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.artifact == nil {
		return Artifact{}, false
	}
	return *j.artifact, true
}

// Err is the failure that aborted the job, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Bytes is the amount of data buffered so far.
func (j *Job) Bytes() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.bytes
}

// Done is closed when the job reaches a terminal status.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job is terminal or ctx ends.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) append(chunk []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunks = append(j.chunks, chunk)
	j.bytes += int64(len(chunk))
}

func (j *Job) takeChunks() [][]byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := j.chunks
	j.chunks = nil
	return out
}

func (j *Job) finish(status Status, artifact *Artifact, err error, at time.Time) {
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = status
	j.artifact = artifact
	j.err = err
	j.endedAt = at
	j.stream = nil
	j.mu.Unlock()
	close(j.done)
}
