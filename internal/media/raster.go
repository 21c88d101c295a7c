package media

import (
	"bytes"
	"context"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// RasterConverter decodes any raster format registered with the image
// package, applies EXIF orientation, shrinks it to fit the display and
// re-encodes it as JPEG.
type RasterConverter struct {
	MaxWidth, MaxHeight int
	Quality             int
}

func (c *RasterConverter) Convert(ctx context.Context, file RawFile) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	data, err := readAll(file)
	if err != nil {
		return Blob{}, fmt.Errorf("read %s: %w", file.Name, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Blob{}, fmt.Errorf("decode %s: %w", file.Name, err)
	}
	return encodeJPEG(fitDisplay(img, c.MaxWidth, c.MaxHeight), c.Quality)
}

func fitDisplay(img image.Image, maxW, maxH int) image.Image {
	if maxW <= 0 || maxH <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos)
}

func encodeJPEG(img image.Image, quality int) (Blob, error) {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return Blob{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Blob{Data: buf.Bytes(), ContentType: "image/jpeg"}, nil
}
