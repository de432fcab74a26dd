package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"strings"
	"time"

	_ "image/jpeg" // register upload decoders
	_ "image/png"

	"github.com/recibox/receipt-ocr-service/internal/db"
	"github.com/recibox/receipt-ocr-service/internal/extract"
	"github.com/recibox/receipt-ocr-service/internal/models"
	"github.com/recibox/receipt-ocr-service/internal/ocr"
	"github.com/recibox/receipt-ocr-service/internal/storage"
)

// ErrUnreadableDocument is returned when the upload cannot be decoded as an
// image or PDF. Terminal for that document; nothing is persisted.
var ErrUnreadableDocument = errors.New("unable to read uploaded document")

// Recognizer converts a preprocessed page image into raw text.
type Recognizer interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// Rasterizer renders a PDF into per-page images.
type Rasterizer interface {
	RenderPages(data []byte) ([]image.Image, error)
}

// InvoiceStore is the persistence surface the pipeline needs.
type InvoiceStore interface {
	RecordExists(ctx context.Context, invoiceNo string) (bool, error)
	SaveInvoice(ctx context.Context, rec *models.InvoiceRecord) error
}

// Result is the outcome of processing one document. On a duplicate, Record
// still holds the extracted data for display; the store is untouched.
type Result struct {
	Record      *models.InvoiceRecord
	Saved       bool
	Duplicate   bool
	Pages       int
	OCRDuration time.Duration
}

// Processor sequences one uploaded document through normalization, OCR,
// structuring and duplicate-safe persistence. Stateless; safe for concurrent
// use, one document per call.
type Processor struct {
	recognizer Recognizer
	rasterizer Rasterizer
	store      InvoiceStore
	uploads    storage.Storage
}

// NewProcessor wires the pipeline's collaborators.
func NewProcessor(recognizer Recognizer, rasterizer Rasterizer, store InvoiceStore, uploads storage.Storage) *Processor {
	return &Processor{
		recognizer: recognizer,
		rasterizer: rasterizer,
		store:      store,
		uploads:    uploads,
	}
}

// Process runs the full pipeline for one document. Field-extraction misses
// are absorbed into "N/A" sentinels; unreadable input and storage failures
// abort this document only.
func (p *Processor) Process(ctx context.Context, filename string, data []byte, contentType string) (*Result, error) {
	filePath, err := p.uploads.Save(ctx, filename, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("storing original upload: %w", err)
	}

	pages, err := p.pageImages(data, contentType)
	if err != nil {
		return nil, err
	}

	ocrStart := time.Now()
	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		text, err := p.recognizer.ExtractText(ctx, ocr.Preprocess(page))
		if err != nil {
			return nil, fmt.Errorf("OCR on page %d: %w", i+1, err)
		}
		texts = append(texts, text)
	}
	ocrDuration := time.Since(ocrStart)
	allText := strings.Join(texts, "\n")

	fields := extract.Structure(allText)
	record := &models.InvoiceRecord{
		StoreName: fields.StoreName,
		InvoiceNo: fields.InvoiceNo,
		Date:      fields.Date,
		Total:     fields.Total,
		RawText:   allText,
		FilePath:  filePath,
	}

	result := &Result{
		Record:      record,
		Pages:       len(pages),
		OCRDuration: ocrDuration,
	}

	// Documents without an extractable invoice number are never deduplicated:
	// the sentinel is not a business key.
	if record.InvoiceNo != models.NotAvailable {
		exists, err := p.store.RecordExists(ctx, record.InvoiceNo)
		if err != nil {
			return nil, err
		}
		if exists {
			log.Printf("[Pipeline] Duplicate invoice %s, not persisting", record.InvoiceNo)
			result.Duplicate = true
			return result, nil
		}
	}

	// The existence check is only a hint; the unique constraint decides.
	if err := p.store.SaveInvoice(ctx, record); err != nil {
		if errors.Is(err, db.ErrDuplicateInvoice) {
			result.Duplicate = true
			return result, nil
		}
		return nil, err
	}

	result.Saved = true
	return result, nil
}

// pageImages turns the upload into the page sequence the OCR loop consumes:
// a PDF rasterizes page-by-page, a raster image decodes to a single page.
func (p *Processor) pageImages(data []byte, contentType string) ([]image.Image, error) {
	if contentType == "application/pdf" {
		pages, err := p.rasterizer.RenderPages(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
		}
		if len(pages) == 0 {
			return nil, fmt.Errorf("%w: PDF has no pages", ErrUnreadableDocument)
		}
		return pages, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	return []image.Image{img}, nil
}
