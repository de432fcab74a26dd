package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/recibox/receipt-ocr-service/internal/models"
)

// A fieldRule extracts one field from the full OCR text: the first match of
// re anywhere in the text wins, the capture group is the value, and normalize
// (when set) cleans it up. A miss yields the "N/A" sentinel, never an error.
type fieldRule struct {
	name      string
	re        *regexp.Regexp
	group     int
	normalize func(string) string
}

var (
	invoiceNoRule = fieldRule{
		name:  "invoice_no",
		re:    regexp.MustCompile(`(?i)Invoice\s*(?:No|Number|#)?\s*[:\-]?\s*([0-9]{3,})`),
		group: 1,
	}

	// Day/month/year grouping is digit-count validated only. Each separator
	// is drawn from the class independently, so 12/04-2024 matches too.
	dateRule = fieldRule{
		name:  "date",
		re:    regexp.MustCompile(`(?i)(?:Date|Dated)\s*[:\-]?\s*([0-9]{2}[/\-][0-9]{2}[/\-][0-9]{4})`),
		group: 1,
	}

	// The OCR whitelist strips currency symbols before they reach us, but the
	// optional prefix keeps the rule correct for text from other sources.
	totalRule = fieldRule{
		name:      "total",
		re:        regexp.MustCompile(`(?i)(?:Grand\s+Total|Total|Amount)\s*[=:]?\s*(?:Rs\.?|INR|\$)?\s*([\d,]+\.\d{2})`),
		group:     1,
		normalize: normalizeAmount,
	}
)

// apply runs the rule against the whole text and returns the extracted value
// or the sentinel.
func (r fieldRule) apply(text string) string {
	m := r.re.FindStringSubmatch(text)
	if m == nil {
		return models.NotAvailable
	}
	v := m[r.group]
	if r.normalize != nil {
		v = r.normalize(v)
	}
	return v
}

// normalizeAmount strips comma grouping and re-renders the amount with
// exactly two fraction digits.
func normalizeAmount(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return models.NotAvailable
	}
	return d.StringFixed(2)
}

// storeName takes the first non-empty trimmed line of the text.
func storeName(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return models.NotAvailable
}

// Structure parses raw OCR text into the four-field schema. Every field is
// evaluated independently against the entire text; a pattern miss becomes
// "N/A" and never blocks the other fields. Deterministic: identical text
// yields identical fields.
func Structure(text string) models.ExtractedFields {
	return models.ExtractedFields{
		StoreName: storeName(text),
		InvoiceNo: invoiceNoRule.apply(text),
		Date:      dateRule.apply(text),
		Total:     totalRule.apply(text),
	}
}
