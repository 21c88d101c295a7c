package media

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// PDFConverter renders one page of a PDF document through MuPDF.
type PDFConverter struct {
	Page    int
	DPI     int
	Quality int
}

func (c *PDFConverter) Convert(ctx context.Context, file RawFile) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	data, err := readAll(file)
	if err != nil {
		return Blob{}, fmt.Errorf("read %s: %w", file.Name, err)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return Blob{}, fmt.Errorf("open pdf %s: %w", file.Name, err)
	}
	defer doc.Close()

	if c.Page < 0 || c.Page >= doc.NumPage() {
		return Blob{}, fmt.Errorf("pdf %s has %d pages, page %d requested", file.Name, doc.NumPage(), c.Page)
	}

	dpi := c.DPI
	if dpi <= 0 {
		dpi = 150
	}
	img, err := doc.ImageDPI(c.Page, float64(dpi))
	if err != nil {
		return Blob{}, fmt.Errorf("render pdf %s: %w", file.Name, err)
	}
	return encodeJPEG(img, c.Quality)
}
