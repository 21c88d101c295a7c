package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/faults"
	"github.com/ivlev/slideshow/internal/logging"
)

// Soundtrack is the optional looping background audio of a session.
type Soundtrack struct {
	ID       uuid.UUID
	Name     string
	Handle   Handle
	Duration time.Duration // zero when the probe could not tell
}

// DurationProbe measures the length of an audio file on disk.
type DurationProbe func(ctx context.Context, path string) (time.Duration, error)

var audioFormats = map[string]bool{
	"mp3": true, "wav": true, "m4a": true, "aac": true, "ogg": true, "flac": true, "opus": true,
}

// IngestSoundtrack stores an audio file behind a handle. The probe is
// optional; a probe failure is logged and leaves Duration at zero.
func (in *Ingestor) IngestSoundtrack(ctx context.Context, file RawFile, probe DurationProbe) (*Soundtrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := file.Format()
	if !audioFormats[format] && !strings.HasPrefix(strings.ToLower(file.ContentType), "audio/") {
		return nil, faults.Wrap(faults.ErrConversion, "media", "soundtrack", file.Name, fmt.Errorf("unsupported audio format %q", format))
	}

	data, err := readAll(file)
	if err != nil {
		return nil, faults.Wrap(faults.ErrConversion, "media", "soundtrack", file.Name, err)
	}
	if len(data) == 0 {
		return nil, faults.Wrap(faults.ErrConversion, "media", "soundtrack", file.Name, fmt.Errorf("empty audio file"))
	}

	ext := strings.ToLower(filepath.Ext(file.Name))
	if ext == "" {
		ext = extensionFor(file.ContentType, format)
	}
	handle, err := in.store.Put(data, ext)
	if err != nil {
		return nil, faults.Wrap(faults.ErrConversion, "media", "soundtrack", file.Name, err)
	}

	track := &Soundtrack{ID: uuid.New(), Name: file.Name, Handle: handle}
	if probe != nil {
		path, _ := in.store.Path(handle)
		d, err := probe(ctx, path)
		if err != nil {
			in.logger.Warn("could not probe soundtrack duration",
				zap.String(logging.FieldFile, file.Name), zap.Error(err))
		} else {
			track.Duration = d
		}
	}

	in.logger.Info("soundtrack ready",
		zap.String(logging.FieldFile, file.Name),
		zap.Duration(logging.FieldDuration, track.Duration),
	)
	return track, nil
}
