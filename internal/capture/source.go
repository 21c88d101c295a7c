package capture

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Spec tells a source what is about to be recorded.
type Spec struct {
	Job      uuid.UUID
	Duration time.Duration
}

// Source is the capturable surface. Acquire starts grabbing; failures to
// obtain the surface (missing encoder, permission denied) are reported as
// errors marked with faults.ErrCaptureSource.
type Source interface {
	Acquire(ctx context.Context, spec Spec) (Stream, error)
}

// Stream is an acquired source emitting encoded chunks.
type Stream interface {
	// Chunks delivers encoded data in order. It is closed after Release once
	// everything produced has been delivered.
	Chunks() <-chan []byte
	// Release stops grabbing and frees the source. Safe to call more than once.
	Release(ctx context.Context) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, spec Spec) (Stream, error)

func (f SourceFunc) Acquire(ctx context.Context, spec Spec) (Stream, error) {
	return f(ctx, spec)
}
