package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ivlev/slideshow/internal/metrics"
)

// Handle is a process-local reference to displayable bytes, the equivalent
// of a browser object URL.
type Handle string

// ErrUnknownHandle is returned for handles the store never issued or already released.
var ErrUnknownHandle = errors.New("unknown or released handle")

// HandleStore keeps displayable bytes in a private temp directory.
type HandleStore struct {
	dir string

	mu      sync.Mutex
	entries map[Handle]string
	closed  bool
}

// NewHandleStore creates the backing directory under parent (os.TempDir when empty).
func NewHandleStore(parent string) (*HandleStore, error) {
	dir, err := os.MkdirTemp(parent, "slideshow_")
	if err != nil {
		return nil, fmt.Errorf("create handle dir: %w", err)
	}
	return &HandleStore{dir: dir, entries: make(map[Handle]string)}, nil
}

// Dir is the backing directory.
func (s *HandleStore) Dir() string { return s.dir }

// Put stores data and returns a new handle. ext is the file extension used
// for the backing file, with or without the leading dot.
func (s *HandleStore) Put(data []byte, ext string) (Handle, error) {
	id := uuid.NewString()
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path := filepath.Join(s.dir, id+ext)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("handle store closed")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write handle: %w", err)
	}
	h := Handle("blob:" + id)
	s.entries[h] = path
	metrics.AssetHandlesOpen.Inc()
	return h, nil
}

// Path returns the backing file of h.
func (s *HandleStore) Path(h Handle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.entries[h]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return path, nil
}

// Open opens the bytes behind h for reading.
func (s *HandleStore) Open(h Handle) (io.ReadCloser, error) {
	path, err := s.Path(h)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Release frees h. It reports whether h was live; releasing twice is a no-op.
func (s *HandleStore) Release(h Handle) bool {
	s.mu.Lock()
	path, ok := s.entries[h]
	if ok {
		delete(s.entries, h)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	os.Remove(path)
	metrics.AssetHandlesOpen.Dec()
	return true
}

// Len returns the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close releases every live handle and removes the backing directory.
func (s *HandleStore) Close() error {
	s.mu.Lock()
	live := len(s.entries)
	s.entries = make(map[Handle]string)
	s.closed = true
	s.mu.Unlock()

	metrics.AssetHandlesOpen.Sub(float64(live))
	return os.RemoveAll(s.dir)
}
