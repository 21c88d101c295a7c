// Package faults defines the error markers shared by the presenter core.
//
// Every failure that leaves a component is tagged with exactly one marker so
// callers can branch with errors.Is without parsing messages.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPrecondition marks an operation invoked on empty or absent input,
	// e.g. starting playback or capture with zero assets.
	ErrPrecondition = errors.New("precondition failed")
	// ErrConversion marks a per-asset normalization failure. The ingestor
	// absorbs it; it never reaches callers of Ingest.
	ErrConversion = errors.New("conversion failed")
	// ErrConflict marks a request rejected because an exclusive resource is
	// already in use.
	ErrConflict = errors.New("conflict")
	// ErrCaptureSource marks an unavailable capture source or a denied grab.
	ErrCaptureSource = errors.New("capture source unavailable")
)

// Wrap builds an error that carries component/operation context and keeps
// marker reachable through errors.Is. A nil marker defaults to ErrPrecondition.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPrecondition
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the marker carried by err, or nil when err is untagged.
func Kind(err error) error {
	for _, marker := range []error{ErrPrecondition, ErrConversion, ErrConflict, ErrCaptureSource} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "presenter failure"
	}
	return strings.Join(parts, ": ")
}
