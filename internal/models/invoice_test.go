package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalDecimal(t *testing.T) {
	rec := &InvoiceRecord{Total: "1999.50"}
	d, ok := rec.TotalDecimal()
	require.True(t, ok)
	assert.Equal(t, "1999.5", d.String())

	rec = &InvoiceRecord{Total: NotAvailable}
	_, ok = rec.TotalDecimal()
	assert.False(t, ok)
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.Defaults()

	assert.Equal(t, 8080, c.Port)
	assert.Equal(t, "0.0.0.0", c.Host)
	assert.Equal(t, "eng", c.OCR.Language)
	assert.Equal(t, 300, c.PDF.DPI)
	assert.Equal(t, "local", c.Storage.Backend)
	assert.Equal(t, "uploads", c.Storage.Dir)
}

func TestConfigDefaultsPreserveExplicitValues(t *testing.T) {
	c := Config{Port: 9090, OCR: OCRConfig{Language: "spa"}, PDF: PDFConfig{DPI: 150}}
	c.Defaults()

	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, "spa", c.OCR.Language)
	assert.Equal(t, 150, c.PDF.DPI)
}
