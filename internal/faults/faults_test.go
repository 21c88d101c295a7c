package faults_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ivlev/slideshow/internal/faults"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("permission denied")
	err := faults.Wrap(faults.ErrCaptureSource, "capture", "acquire", "screen grab", base)
	if !errors.Is(err, faults.ErrCaptureSource) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"capture", "acquire", "screen grab"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in %q", fragment, err.Error())
		}
	}
}

func TestWrapDefaults(t *testing.T) {
	err := faults.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, faults.ErrPrecondition) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "presenter failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"conflict", faults.Wrap(faults.ErrConflict, "capture", "start", "busy", nil), faults.ErrConflict},
		{"conversion", faults.Wrap(faults.ErrConversion, "media", "convert", "", errors.New("bad heic")), faults.ErrConversion},
		{"untagged", errors.New("plain"), nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := faults.Kind(tt.err); got != tt.want {
				t.Fatalf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}
