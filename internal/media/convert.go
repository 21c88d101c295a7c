package media

import (
	"context"
	"mime"
	"strings"
)

// Blob is the displayable output of a conversion.
type Blob struct {
	Data        []byte
	ContentType string
}

// Converter normalizes a file whose format cannot be displayed directly.
type Converter interface {
	Convert(ctx context.Context, file RawFile) (Blob, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, file RawFile) (Blob, error)

func (f ConverterFunc) Convert(ctx context.Context, file RawFile) (Blob, error) {
	return f(ctx, file)
}

// Converters maps a source format (see RawFile.Format) to its converter.
// Formats without an entry are treated as directly displayable.
type Converters map[string]Converter

// ConverterOptions tunes the default converter set.
type ConverterOptions struct {
	MaxWidth, MaxHeight int
	Quality             int
	PDFPage             int
	PDFDPI              int
}

// DefaultConverters returns the stock set: libvips for camera-native HEIF
// containers, MuPDF for PDF documents and the Go decoders for TIFF, BMP and
// WebP rasters.
func DefaultConverters(opts ConverterOptions) Converters {
	raster := &RasterConverter{MaxWidth: opts.MaxWidth, MaxHeight: opts.MaxHeight, Quality: opts.Quality}
	heif := &VipsConverter{Quality: opts.Quality}
	pdf := &PDFConverter{Page: opts.PDFPage, DPI: opts.PDFDPI, Quality: opts.Quality}
	return Converters{
		"heic": heif,
		"heif": heif,
		"pdf":  pdf,
		"tiff": raster,
		"bmp":  raster,
		"webp": raster,
	}
}

func extensionFor(contentType, fallback string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch ct {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	}
	if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if fallback == "" || fallback == "unknown" {
		return ""
	}
	return "." + fallback
}
