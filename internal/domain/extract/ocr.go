package extract

import (
	"context"
	"errors"
)

// ErrOCRNotConfigured indicates no OCR backend is wired in this deployment.
var ErrOCRNotConfigured = errors.New("ocr backend not configured")

// OCRClient recognizes text in photographed statements. The concrete backend
// (cloud vision service, tesseract sidecar) lives outside this module; the
// pipeline only consumes recognized text through the document extractor.
type OCRClient interface {
	RecognizeText(ctx context.Context, image []byte) (string, error)
}

// NoopOCR is the default OCRClient; it rejects image input so jobs fail with
// a clear message instead of silently producing zero transactions.
type NoopOCR struct{}

func (NoopOCR) RecognizeText(context.Context, []byte) (string, error) {
	return "", ErrOCRNotConfigured
}
