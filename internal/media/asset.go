// Package media turns raw user files into displayable assets.
//
// Ingestion preserves submission order, converts formats a display cannot
// show natively (HEIC, PDF, TIFF, ...) through pluggable converters and drops
// files that fail without failing the batch. Every asset owns a handle in a
// HandleStore that its session releases on close.
package media

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Status is the conversion state of an asset.
type Status int

const (
	StatusPending Status = iota
	StatusConverted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConverted:
		return "converted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Asset is one displayable unit derived from one input file. Assets handed
// out by the Ingestor are always StatusConverted and are not modified after.
type Asset struct {
	ID      uuid.UUID
	Handle  Handle
	Ordinal int
	Status  Status
	Name    string
	Format  string // source format, e.g. "heic"
	Width   int
	Height  int
	Size    int64
}

// RawFile is an opaque blob plus the name/type hints supplied by the picker.
type RawFile struct {
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileFromPath wraps a file on disk.
func FileFromPath(path string) RawFile {
	return RawFile{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// FileFromBytes wraps an in-memory blob.
func FileFromBytes(name, contentType string, data []byte) RawFile {
	return RawFile{
		Name:        name,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

var contentTypeFormats = map[string]string{
	"image/jpeg":      "jpeg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/bmp":       "bmp",
	"image/tiff":      "tiff",
	"image/heic":      "heic",
	"image/heif":      "heif",
	"application/pdf": "pdf",
}

// Format returns the declared source format: the lower-cased extension when
// the name has one, otherwise a format derived from the content type.
func (f RawFile) Format() string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), "."); ext != "" {
		switch ext {
		case "jpg":
			return "jpeg"
		case "tif":
			return "tiff"
		}
		return ext
	}
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if format, ok := contentTypeFormats[ct]; ok {
		return format
	}
	return "unknown"
}

func readAll(f RawFile) ([]byte, error) {
	if f.Open == nil {
		return nil, os.ErrInvalid
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
