package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// charWhitelist restricts recognition to ASCII letters, digits and the few
// symbols the field patterns need. Precision/recall trade-off: structured
// numeric fields come out cleaner, currency symbols and punctuation do not
// survive recognition at all.
const charWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"abcdefghijklmnopqrstuvwxyz" +
	"0123456789:-/#"

// TesseractOCR wraps the Tesseract engine. Recognition uses the default
// engine mode (legacy+LSTM) with uniform-block page segmentation.
type TesseractOCR struct {
	language string
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(language string) *TesseractOCR {
	if language == "" {
		language = "eng"
	}
	return &TesseractOCR{language: language}
}

// ExtractText performs OCR on a preprocessed binary image and returns the raw
// recognized string, embedded newlines included; no post-filtering. A fresh
// client is used per call so concurrent requests never share engine state.
// Recognition runs off the calling goroutine; ctx cancellation abandons the
// wait (the engine call itself is not interruptible).
func (t *TesseractOCR) ExtractText(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding image for OCR: %w", err)
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		client := gosseract.NewClient()
		defer client.Close()

		if err := client.SetLanguage(t.language); err != nil {
			ch <- result{err: fmt.Errorf("setting OCR language: %w", err)}
			return
		}
		if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
			ch <- result{err: fmt.Errorf("setting page segmentation mode: %w", err)}
			return
		}
		if err := client.SetWhitelist(charWhitelist); err != nil {
			ch <- result{err: fmt.Errorf("setting character whitelist: %w", err)}
			return
		}
		if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
			ch <- result{err: fmt.Errorf("loading image into OCR engine: %w", err)}
			return
		}

		text, err := client.Text()
		if err != nil {
			ch <- result{err: fmt.Errorf("OCR recognition: %w", err)}
			return
		}
		ch <- result{text: text}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
