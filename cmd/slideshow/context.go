package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/slideshow/internal/album"
	"github.com/ivlev/slideshow/internal/config"
	"github.com/ivlev/slideshow/internal/engine"
	"github.com/ivlev/slideshow/internal/logging"
	"github.com/ivlev/slideshow/internal/system"
)

// Манифесты без явного пути ищутся здесь.
const defaultAlbumDir = "albums"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	metricsFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, metricsFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		metricsFlag:  metricsFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.LogLevel = *c.logLevelFlag
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("invalid config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*zap.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// openPresenter builds a presenter for one command invocation. The returned
// cleanup closes it and stops the metrics endpoint.
func (c *commandContext) openPresenter(ctx context.Context) (*engine.Presenter, *zap.Logger, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, nil, nil, err
	}
	system.InitResourceLimits(logger)

	presenter, err := engine.New(engine.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Sync()
		return nil, nil, nil, err
	}
	stopMetrics := c.serveMetrics(logger)

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := presenter.Close(closeCtx); err != nil {
			logger.Warn("presenter close", zap.Error(err))
		}
		stopMetrics()
		logger.Sync()
	}
	return presenter, logger, cleanup, nil
}

func (c *commandContext) serveMetrics(logger *zap.Logger) func() {
	if c.metricsFlag == nil || strings.TrimSpace(*c.metricsFlag) == "" {
		return func() {}
	}
	addr := strings.TrimSpace(*c.metricsFlag)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics endpoint stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// loadAlbum turns command arguments into an album: a directory of images, a
// YAML manifest, or an explicit list of files. Without arguments the newest
// manifest in albums/ is used.
func loadAlbum(args []string) (*album.Album, error) {
	switch len(args) {
	case 0:
		path, err := album.FindLatest(defaultAlbumDir)
		if err != nil {
			return nil, fmt.Errorf("%w; pass a directory, a manifest or image files", err)
		}
		return album.Read(path)
	case 1:
		info, err := os.Stat(args[0])
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return album.FromDir(args[0], "")
		}
		if system.HasExtension(args[0], []string{".yaml", ".yml"}) {
			return album.Read(args[0])
		}
	}
	return &album.Album{Version: album.Version, Images: args}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
