// Package album reads and writes YAML album manifests: an ordered list of
// images plus the presentation settings that go with them.
package album

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/slideshow/internal/media"
	"github.com/ivlev/slideshow/internal/system"
)

// Version is written into new manifests.
const Version = "1.0"

// Album represents a presentation on disk. Relative paths are resolved
// against the manifest's directory.
type Album struct {
	Version    string        `yaml:"version"`
	Title      string        `yaml:"title,omitempty"`
	Images     []string      `yaml:"images"`
	Audio      string        `yaml:"audio,omitempty"`
	Interval   time.Duration `yaml:"interval,omitempty"`
	Transition string        `yaml:"transition,omitempty"`

	dir string
}

// Write writes an album to a YAML file
func Write(a *Album, path string) error {
	if a.Version == "" {
		a.Version = Version
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Read reads an album from a YAML file
func Read(path string) (*Album, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var a Album
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse album %s: %w", path, err)
	}
	if len(a.Images) == 0 {
		return nil, fmt.Errorf("album %s lists no images", path)
	}
	a.dir = filepath.Dir(path)
	return &a, nil
}

// FromDir builds an album from the images in dir, sorted by name, and the
// newest audio file there if any.
func FromDir(dir, title string) (*Album, error) {
	images, err := system.FindImages(dir)
	if err != nil {
		return nil, err
	}
	a := &Album{Version: Version, Title: title, dir: dir}
	for _, p := range images {
		a.Images = append(a.Images, filepath.Base(p))
	}
	if audio, err := system.FindLatestAudio(dir); err == nil {
		a.Audio = filepath.Base(audio)
	}
	return a, nil
}

// Resolve returns p as an absolute path or relative to the manifest directory.
func (a *Album) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.dir, p)
}

// MakeAbsolute rewrites every path so the manifest can be stored outside
// the image directory.
func (a *Album) MakeAbsolute() error {
	for i, img := range a.Images {
		abs, err := filepath.Abs(a.Resolve(img))
		if err != nil {
			return err
		}
		a.Images[i] = abs
	}
	if a.Audio != "" {
		abs, err := filepath.Abs(a.Resolve(a.Audio))
		if err != nil {
			return err
		}
		a.Audio = abs
	}
	return nil
}

// Files returns the images as raw files in album order.
func (a *Album) Files() []media.RawFile {
	files := make([]media.RawFile, 0, len(a.Images))
	for _, img := range a.Images {
		files = append(files, media.FileFromPath(a.Resolve(img)))
	}
	return files
}

// AudioFile returns the soundtrack, if the album has one.
func (a *Album) AudioFile() (media.RawFile, bool) {
	if a.Audio == "" {
		return media.RawFile{}, false
	}
	return media.FileFromPath(a.Resolve(a.Audio)), true
}

// GeneratePath creates a timestamped manifest filename in dir
func GeneratePath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("album_%s.yaml", now.Format("2006-01-02_15-04-05")))
}

// ErrNoAlbums is returned by FindLatest for a directory without manifests.
var ErrNoAlbums = errors.New("no album manifests found")

// FindLatest finds the most recent manifest in dir
func FindLatest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read album directory: %w", err)
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	var albums []candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		albums = append(albums, candidate{filepath.Join(dir, name), info.ModTime()})
	}

	if len(albums) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoAlbums, dir)
	}

	// Sort by modification time (newest first)
	sort.Slice(albums, func(i, j int) bool {
		return albums[i].mod.After(albums[j].mod)
	})

	return albums[0].path, nil
}
