package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.SlideInterval != 4*time.Second {
		t.Errorf("expected 4s slide interval, got %s", cfg.SlideInterval)
	}
	if got := cfg.ArtifactPath(); got != filepath.Join("output", "Memories.webm") {
		t.Errorf("unexpected artifact path %s", got)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slideshow.yaml")
	body := "title: Summer\nslide_interval: 7s\ntransition: random-exit\nseed: 42\nfps: 25\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Title != "Summer" {
		t.Errorf("expected title Summer, got %q", cfg.Title)
	}
	if cfg.SlideInterval != 7*time.Second {
		t.Errorf("expected 7s interval, got %s", cfg.SlideInterval)
	}
	if cfg.TransitionMode != TransitionRandomExit {
		t.Errorf("expected random-exit, got %s", cfg.TransitionMode)
	}
	if cfg.Seed != 42 || cfg.FPS != 25 {
		t.Errorf("unexpected seed/fps: %d/%d", cfg.Seed, cfg.FPS)
	}
	// не указанные поля сохраняют значения по умолчанию
	if cfg.Width != 1280 || cfg.ArtifactName != DefaultArtifactName {
		t.Errorf("defaults lost: width=%d artifact=%s", cfg.Width, cfg.ArtifactName)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CaptureSource != SourceSurface {
		t.Errorf("expected surface source, got %s", cfg.CaptureSource)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero interval", func(c *Config) { c.SlideInterval = 0 }, "slide_interval"},
		{"bad transition", func(c *Config) { c.TransitionMode = "spin" }, "transition"},
		{"bad source", func(c *Config) { c.CaptureSource = "webcam" }, "capture_source"},
		{"odd width", func(c *Config) { c.Width = 1281 }, "even"},
		{"zero fps", func(c *Config) { c.FPS = 0 }, "fps"},
		{"empty artifact", func(c *Config) { c.ArtifactName = "" }, "artifact_name"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestCaptureParams(t *testing.T) {
	cfg := Default()
	cfg.AudioPath = "input/audio/song.mp3"
	p := cfg.Capture()
	if p.Width != 1280 || p.Height != 720 || p.FPS != 30 {
		t.Errorf("unexpected geometry %+v", p)
	}
	if p.AudioPath != cfg.AudioPath || p.Encoder != "libvpx" {
		t.Errorf("unexpected params %+v", p)
	}
}
