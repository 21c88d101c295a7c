package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var vipsStartup sync.Once

// startVips initializes libvips once per process with conservative memory
// settings; libvips messages below error level are dropped.
func startVips() {
	vipsStartup.Do(func() {
		vips.LoggingSettings(func(string, vips.LogLevel, string) {}, vips.LogLevelError)
		vips.Startup(&vips.Config{
			ConcurrencyLevel: 1,
			MaxCacheMem:      50 * 1024 * 1024,
			MaxCacheSize:     100,
		})
	})
}

// VipsConverter converts camera-native HEIC/HEIF containers to JPEG with libvips.
type VipsConverter struct {
	Quality int
}

func (c *VipsConverter) Convert(ctx context.Context, file RawFile) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	data, err := readAll(file)
	if err != nil {
		return Blob{}, fmt.Errorf("read %s: %w", file.Name, err)
	}

	startVips()
	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return Blob{}, fmt.Errorf("vips load %s: %w", file.Name, err)
	}
	defer ref.Close()

	if err := ref.AutoRotate(); err != nil {
		return Blob{}, fmt.Errorf("vips rotate %s: %w", file.Name, err)
	}

	params := vips.NewJpegExportParams()
	if c.Quality > 0 && c.Quality <= 100 {
		params.Quality = c.Quality
	}
	params.StripMetadata = true
	out, _, err := ref.ExportJpeg(params)
	if err != nil {
		return Blob{}, fmt.Errorf("vips export %s: %w", file.Name, err)
	}
	return Blob{Data: out, ContentType: "image/jpeg"}, nil
}
