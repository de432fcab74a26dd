package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotAvailable is the sentinel stored for any field the structurer could not
// extract. It is a displayable value, not an error.
const NotAvailable = "N/A"

// ExtractedFields is the structured output of one OCR pass: the four scalar
// fields, each either an extracted value or the "N/A" sentinel.
type ExtractedFields struct {
	StoreName string `json:"store_name"`
	InvoiceNo string `json:"invoice_no"`
	Date      string `json:"date"`
	Total     string `json:"total"`
}

// InvoiceRecord is one digitized document as it is persisted: the extracted
// fields plus the full OCR text and the stored-upload reference. ID and
// CreatedAt are assigned by the store at insertion time.
type InvoiceRecord struct {
	ID        int64     `json:"id,omitempty"`
	StoreName string    `json:"store_name"`
	InvoiceNo string    `json:"invoice_no"`
	Date      string    `json:"date"`
	Total     string    `json:"total"`
	RawText   string    `json:"raw_text,omitempty"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// TotalDecimal parses the normalized total into a decimal value. The second
// return is false when the total is the "N/A" sentinel or unparseable.
func (r *InvoiceRecord) TotalDecimal() (decimal.Decimal, bool) {
	if r.Total == NotAvailable {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(r.Total)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// InvoiceSummary is one row of the listing projection, newest first.
type InvoiceSummary struct {
	StoreName string    `json:"store_name"`
	InvoiceNo string    `json:"invoice_no"`
	Date      string    `json:"date"`
	Total     string    `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// ProcessResponse is the upload endpoint's reply. On a duplicate the record
// is still present for display; only Saved is false.
type ProcessResponse struct {
	Success   bool           `json:"success"`
	Saved     bool           `json:"saved"`
	Duplicate bool           `json:"duplicate"`
	Invoice   *InvoiceRecord `json:"invoice,omitempty"`
	RawText   string         `json:"rawText,omitempty"`
	Pages     int            `json:"pages,omitempty"`
	Error     string         `json:"error,omitempty"`

	OCRDuration   float64 `json:"ocrDuration,omitempty"`
	TotalDuration float64 `json:"totalDuration"`
}

// Config represents the service configuration
type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	OCR OCRConfig `yaml:"ocr"`
	PDF PDFConfig `yaml:"pdf"`

	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
}

// OCRConfig represents OCR-specific configuration
type OCRConfig struct {
	Language string `yaml:"language"` // default: "eng"
}

// PDFConfig controls rasterization of uploaded PDFs
type PDFConfig struct {
	DPI int `yaml:"dpi"` // default: 300
}

// StorageConfig selects where uploaded originals are kept
type StorageConfig struct {
	Backend string `yaml:"backend"` // "local" or "minio"
	Dir     string `yaml:"dir"`     // local backend: upload directory
}

// AuthConfig holds the service credentials accepted by /api/login
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Defaults fills zero values with the service defaults.
func (c *Config) Defaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	if c.PDF.DPI == 0 {
		c.PDF.DPI = 300
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = "uploads"
	}
}
