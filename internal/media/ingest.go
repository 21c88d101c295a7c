package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/slideshow/internal/faults"
	"github.com/ivlev/slideshow/internal/logging"
	"github.com/ivlev/slideshow/internal/metrics"
)

// Ingestor converts raw files into ordered, displayable assets.
type Ingestor struct {
	store      *HandleStore
	converters Converters
	workers    int
	logger     *zap.Logger
}

// NewIngestor returns an ingestor writing handles into store. workers bounds
// the number of concurrent conversions (values below 1 mean sequential).
func NewIngestor(store *HandleStore, converters Converters, workers int, logger *zap.Logger) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	if converters == nil {
		converters = Converters{}
	}
	return &Ingestor{
		store:      store,
		converters: converters,
		workers:    workers,
		logger:     logging.OrNop(logger),
	}
}

// Store returns the handle store the ingestor writes to.
func (in *Ingestor) Store() *HandleStore { return in.store }

// Ingest converts files concurrently and returns the successful assets in
// submission order. Files that fail to convert are logged and dropped. The
// only error returned is the context's, in which case every handle created
// by this call has already been released.
func (in *Ingestor) Ingest(ctx context.Context, files []RawFile) ([]*Asset, error) {
	started := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(started).Seconds())
	}()

	if len(files) == 0 {
		return []*Asset{}, nil
	}

	results := make([]*Asset, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.workers)

	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			asset, err := in.ingestOne(gctx, i, file)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				metrics.IngestFilesTotal.WithLabelValues("failed", file.Format()).Inc()
				in.logger.Warn("dropping file that could not be converted",
					zap.String(logging.FieldFile, file.Name),
					zap.Int(logging.FieldOrdinal, i),
					zap.Error(err),
				)
				return nil
			}
			results[i] = asset
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, asset := range results {
			if asset != nil {
				in.store.Release(asset.Handle)
			}
		}
		return nil, err
	}

	// Упорядочиваем по исходному индексу, пропуская неудачные файлы
	assets := make([]*Asset, 0, len(files))
	for _, asset := range results {
		if asset != nil {
			assets = append(assets, asset)
		}
	}

	in.logger.Info("ingestion finished",
		zap.Int("submitted", len(files)),
		zap.Int("converted", len(assets)),
		zap.Duration(logging.FieldDuration, time.Since(started)),
	)
	return assets, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, ordinal int, file RawFile) (*Asset, error) {
	format := file.Format()
	asset := &Asset{
		ID:      uuid.New(),
		Ordinal: ordinal,
		Status:  StatusPending,
		Name:    file.Name,
		Format:  format,
	}

	var (
		data    []byte
		ext     string
		outcome string
	)
	if conv, ok := in.converters[format]; ok {
		blob, err := conv.Convert(ctx, file)
		if err != nil {
			asset.Status = StatusFailed
			return nil, faults.Wrap(faults.ErrConversion, "media", "convert", file.Name, err)
		}
		data = blob.Data
		ext = extensionFor(blob.ContentType, "")
		outcome = "converted"
	} else {
		raw, err := readAll(file)
		if err != nil {
			asset.Status = StatusFailed
			return nil, faults.Wrap(faults.ErrConversion, "media", "read", file.Name, err)
		}
		data = raw
		ext = extensionFor(file.ContentType, format)
		outcome = "direct"
	}

	if len(data) == 0 {
		asset.Status = StatusFailed
		return nil, faults.Wrap(faults.ErrConversion, "media", "validate", file.Name, errors.New("empty result"))
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		asset.Status = StatusFailed
		return nil, faults.Wrap(faults.ErrConversion, "media", "validate", file.Name, fmt.Errorf("not displayable: %w", err))
	}

	handle, err := in.store.Put(data, ext)
	if err != nil {
		asset.Status = StatusFailed
		return nil, faults.Wrap(faults.ErrConversion, "media", "store", file.Name, err)
	}

	asset.Handle = handle
	asset.Width = cfg.Width
	asset.Height = cfg.Height
	asset.Size = int64(len(data))
	asset.Status = StatusConverted

	metrics.IngestFilesTotal.WithLabelValues(outcome, format).Inc()
	in.logger.Debug("asset ready",
		zap.String(logging.FieldAsset, asset.ID.String()),
		zap.String(logging.FieldFile, file.Name),
		zap.String(logging.FieldFormat, format),
		zap.Int(logging.FieldOrdinal, ordinal),
	)
	return asset, nil
}

// Release frees the handles of assets. It returns how many were live.
func (in *Ingestor) Release(assets []*Asset) int {
	released := 0
	for _, asset := range assets {
		if asset != nil && in.store.Release(asset.Handle) {
			released++
		}
	}
	return released
}
