package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Варианты источника захвата
const (
	SourceSurface = "surface"
	SourceScreen  = "screen"
)

// Режимы переходов
const (
	TransitionDirectional = "directional"
	TransitionRandomExit  = "random-exit"
)

const DefaultArtifactName = "Memories.webm"

type Config struct {
	Title          string        `yaml:"title"`
	SlideInterval  time.Duration `yaml:"slide_interval"`
	TransitionMode string        `yaml:"transition"`
	SlideDistance  float64       `yaml:"slide_distance"`
	TransitionTime time.Duration `yaml:"transition_time"`
	Seed           int64         `yaml:"seed"`

	OutputDir    string `yaml:"output_dir"`
	ArtifactName string `yaml:"artifact_name"`
	AudioPath    string `yaml:"audio"`

	CaptureSource string `yaml:"capture_source"`
	ScreenInput   string `yaml:"screen_input"`
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	FPS           int    `yaml:"fps"`
	VideoEncoder  string `yaml:"video_encoder"`
	Quality       int    `yaml:"quality"`
	LockPath      string `yaml:"lock_path"`

	Workers       int `yaml:"workers"`
	DisplayWidth  int `yaml:"display_width"`
	DisplayHeight int `yaml:"display_height"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// CaptureParams is the slice of Config an ffmpeg capture source needs.
type CaptureParams struct {
	Width, Height int
	FPS           int
	Encoder       string
	Quality       int
	ScreenInput   string
	AudioPath     string
}

// Default returns the presenter defaults: four seconds per slide, directional
// transitions, 1280x720@30 WebM capture into output/Memories.webm.
func Default() *Config {
	return &Config{
		SlideInterval:  4 * time.Second,
		TransitionMode: TransitionDirectional,
		SlideDistance:  1000,
		TransitionTime: 600 * time.Millisecond,
		OutputDir:      "output",
		ArtifactName:   DefaultArtifactName,
		CaptureSource:  SourceSurface,
		Width:          1280,
		Height:         720,
		FPS:            30,
		VideoEncoder:   "libvpx",
		Quality:        10,
		LockPath:       filepath.Join(os.TempDir(), "slideshow-capture.lock"),
		DisplayWidth:   1920,
		DisplayHeight:  1080,
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load reads a YAML config file on top of Default. Fields missing from the
// file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values the core depends on.
func (c *Config) Validate() error {
	var errs []error
	if c.SlideInterval <= 0 {
		errs = append(errs, errors.New("slide_interval must be positive"))
	}
	switch c.TransitionMode {
	case TransitionDirectional, TransitionRandomExit:
	default:
		errs = append(errs, fmt.Errorf("transition: unsupported value %q", c.TransitionMode))
	}
	switch c.CaptureSource {
	case SourceSurface, SourceScreen:
	default:
		errs = append(errs, fmt.Errorf("capture_source: unsupported value %q", c.CaptureSource))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, errors.New("width and height must be positive"))
	}
	// yuv420p требует чётных размеров
	if c.Width%2 != 0 || c.Height%2 != 0 {
		errs = append(errs, errors.New("width and height must be even"))
	}
	if c.FPS <= 0 {
		errs = append(errs, errors.New("fps must be positive"))
	}
	if strings.TrimSpace(c.ArtifactName) == "" {
		errs = append(errs, errors.New("artifact_name must not be empty"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}
	return errors.Join(errs...)
}

// Capture extracts the capture parameters.
func (c *Config) Capture() CaptureParams {
	return CaptureParams{
		Width:       c.Width,
		Height:      c.Height,
		FPS:         c.FPS,
		Encoder:     c.VideoEncoder,
		Quality:     c.Quality,
		ScreenInput: c.ScreenInput,
		AudioPath:   c.AudioPath,
	}
}

// ArtifactPath is where the finished recording is delivered.
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.OutputDir, c.ArtifactName)
}
