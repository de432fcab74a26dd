package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recibox/receipt-ocr-service/internal/db"
	"github.com/recibox/receipt-ocr-service/internal/models"
)

// fakeRecognizer replays one canned text per page, in order.
type fakeRecognizer struct {
	pageTexts []string
	calls     int
	err       error
}

func (f *fakeRecognizer) ExtractText(_ context.Context, _ image.Image) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	text := f.pageTexts[f.calls]
	f.calls++
	return text, nil
}

type fakeRasterizer struct {
	pages int
	err   error
}

func (f *fakeRasterizer) RenderPages(_ []byte) ([]image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	pages := make([]image.Image, f.pages)
	for i := range pages {
		pages[i] = image.NewRGBA(image.Rect(0, 0, 8, 8))
	}
	return pages, nil
}

// fakeStore mimics the invoices table: string-equality lookups and a unique
// constraint that exempts the sentinel.
type fakeStore struct {
	records       []*models.InvoiceRecord
	existsCalls   []string
	raceDupOnSave bool
}

func (f *fakeStore) RecordExists(_ context.Context, invoiceNo string) (bool, error) {
	f.existsCalls = append(f.existsCalls, invoiceNo)
	for _, r := range f.records {
		if r.InvoiceNo == invoiceNo {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) SaveInvoice(_ context.Context, rec *models.InvoiceRecord) error {
	if f.raceDupOnSave {
		return db.ErrDuplicateInvoice
	}
	if rec.InvoiceNo != models.NotAvailable {
		for _, r := range f.records {
			if r.InvoiceNo == rec.InvoiceNo {
				return db.ErrDuplicateInvoice
			}
		}
	}
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, rec)
	return nil
}

type fakeStorage struct {
	saved []string
	err   error
}

func (f *fakeStorage) Save(_ context.Context, filename string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := fmt.Sprintf("uploads/test-uuid_%s", filename)
	f.saved = append(f.saved, path)
	return path, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{240, 240, 240, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessSingleImage(t *testing.T) {
	store := &fakeStore{}
	uploads := &fakeStorage{}
	recognizer := &fakeRecognizer{pageTexts: []string{
		"Acme Store\nInvoice No: 55501\nDate: 12/04/2024\nTotal: 1999.50",
	}}
	p := NewProcessor(recognizer, &fakeRasterizer{}, store, uploads)

	result, err := p.Process(context.Background(), "receipt.png", pngBytes(t), "image/png")
	require.NoError(t, err)

	assert.True(t, result.Saved)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 1, result.Pages)
	assert.Equal(t, "Acme Store", result.Record.StoreName)
	assert.Equal(t, "55501", result.Record.InvoiceNo)
	assert.Equal(t, "12/04/2024", result.Record.Date)
	assert.Equal(t, "1999.50", result.Record.Total)
	assert.Equal(t, "uploads/test-uuid_receipt.png", result.Record.FilePath)
	assert.Len(t, store.records, 1)
}

func TestProcessMultiPagePDFConcatenatesText(t *testing.T) {
	store := &fakeStore{}
	recognizer := &fakeRecognizer{pageTexts: []string{
		"Acme Store\nInvoice No: 55501",
		"Date: 12/04/2024\nTotal: 1999.50",
	}}
	p := NewProcessor(recognizer, &fakeRasterizer{pages: 2}, store, &fakeStorage{})

	result, err := p.Process(context.Background(), "invoice.pdf", []byte("%PDF-fake"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, recognizer.calls)
	// Page texts joined with a single newline; the structurer ran once over
	// the concatenation, so fields span page boundaries.
	assert.Equal(t, "Acme Store\nInvoice No: 55501\nDate: 12/04/2024\nTotal: 1999.50", result.Record.RawText)
	assert.Equal(t, "55501", result.Record.InvoiceNo)
	assert.Equal(t, "1999.50", result.Record.Total)
	assert.True(t, result.Saved)
}

func TestProcessDuplicateRejected(t *testing.T) {
	store := &fakeStore{records: []*models.InvoiceRecord{
		{InvoiceNo: "7788", StoreName: "Old Mart"},
	}}
	recognizer := &fakeRecognizer{pageTexts: []string{"New Mart\nInvoice No: 7788\nTotal: 10.00"}}
	p := NewProcessor(recognizer, &fakeRasterizer{}, store, &fakeStorage{})

	result, err := p.Process(context.Background(), "dup.png", pngBytes(t), "image/png")
	require.NoError(t, err)

	assert.True(t, result.Duplicate)
	assert.False(t, result.Saved)
	// Extracted data is still returned for display.
	assert.Equal(t, "New Mart", result.Record.StoreName)
	// Store unchanged: row count constant.
	assert.Len(t, store.records, 1)
	assert.Equal(t, "Old Mart", store.records[0].StoreName)
}

func TestProcessDuplicateCaughtByConstraint(t *testing.T) {
	// Existence pre-check passes but the insert loses the race: the
	// unique-constraint violation is the authoritative duplicate signal.
	store := &fakeStore{raceDupOnSave: true}
	recognizer := &fakeRecognizer{pageTexts: []string{"Acme\nInvoice No: 999111"}}
	p := NewProcessor(recognizer, &fakeRasterizer{}, store, &fakeStorage{})

	result, err := p.Process(context.Background(), "race.png", pngBytes(t), "image/png")
	require.NoError(t, err)

	assert.True(t, result.Duplicate)
	assert.False(t, result.Saved)
}

func TestProcessSentinelInvoiceNoIsNeverDeduplicated(t *testing.T) {
	store := &fakeStore{records: []*models.InvoiceRecord{
		{InvoiceNo: models.NotAvailable, StoreName: "Earlier Unreadable"},
	}}
	recognizer := &fakeRecognizer{pageTexts: []string{"Some Shop\nno labels here"}}
	p := NewProcessor(recognizer, &fakeRasterizer{}, store, &fakeStorage{})

	result, err := p.Process(context.Background(), "nolabel.png", pngBytes(t), "image/png")
	require.NoError(t, err)

	assert.True(t, result.Saved)
	assert.False(t, result.Duplicate)
	assert.Empty(t, store.existsCalls, "sentinel must skip the existence pre-check")
	assert.Len(t, store.records, 2)
}

func TestProcessUnreadableImage(t *testing.T) {
	store := &fakeStore{}
	p := NewProcessor(&fakeRecognizer{}, &fakeRasterizer{}, store, &fakeStorage{})

	_, err := p.Process(context.Background(), "junk.png", []byte("not an image"), "image/png")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadableDocument))
	assert.Empty(t, store.records)
}

func TestProcessUnreadablePDF(t *testing.T) {
	p := NewProcessor(&fakeRecognizer{}, &fakeRasterizer{err: errors.New("broken xref")}, &fakeStore{}, &fakeStorage{})

	_, err := p.Process(context.Background(), "junk.pdf", []byte("nope"), "application/pdf")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadableDocument))
}

func TestProcessStorageFailureIsFatal(t *testing.T) {
	uploads := &fakeStorage{err: errors.New("disk full")}
	store := &fakeStore{}
	p := NewProcessor(&fakeRecognizer{}, &fakeRasterizer{}, store, uploads)

	_, err := p.Process(context.Background(), "receipt.png", pngBytes(t), "image/png")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "storing original upload")
	assert.Empty(t, store.records)
}

func TestProcessOCRFailurePropagates(t *testing.T) {
	recognizer := &fakeRecognizer{err: errors.New("engine crashed")}
	store := &fakeStore{}
	p := NewProcessor(recognizer, &fakeRasterizer{}, store, &fakeStorage{})

	_, err := p.Process(context.Background(), "receipt.png", pngBytes(t), "image/png")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "OCR on page 1")
	assert.Empty(t, store.records)
}
