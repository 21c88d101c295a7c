package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact is the assembled output of a completed job.
type Artifact struct {
	Name string
	Path string
	Size int64
}

// Sink assembles buffered chunks into one artifact and delivers it.
type Sink interface {
	Deliver(ctx context.Context, name string, chunks [][]byte) (Artifact, error)
}

// FileSink writes artifacts into Dir. An existing file of the same name is
// replaced.
type FileSink struct {
	Dir string
}

func (s *FileSink) Deliver(ctx context.Context, name string, chunks [][]byte) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Artifact{}, fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return Artifact{}, fmt.Errorf("create artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	var size int64
	for _, chunk := range chunks {
		n, err := tmp.Write(chunk)
		size += int64(n)
		if err != nil {
			tmp.Close()
			return Artifact{}, fmt.Errorf("write artifact: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return Artifact{}, fmt.Errorf("close artifact: %w", err)
	}

	final := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), final); err != nil {
		return Artifact{}, fmt.Errorf("move artifact: %w", err)
	}
	return Artifact{Name: name, Path: final, Size: size}, nil
}
