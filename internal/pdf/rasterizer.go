package pdf

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// Rasterizer renders PDF pages to raster images at a fixed resolution.
type Rasterizer struct {
	dpi float64
}

// NewRasterizer creates a rasterizer. Zero or negative dpi falls back to 300,
// the sweet spot for OCR on scanned documents.
func NewRasterizer(dpi int) *Rasterizer {
	if dpi <= 0 {
		dpi = 300
	}
	return &Rasterizer{dpi: float64(dpi)}
}

// RenderPages rasterizes every page of the PDF, in page order.
func (r *Rasterizer) RenderPages(data []byte) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	pages := make([]image.Image, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		img, err := doc.ImageDPI(n, r.dpi)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", n+1, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}
