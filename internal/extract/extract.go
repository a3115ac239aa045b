// Package extract turns uploaded document bytes into plain text, choosing a
// strategy per MIME type: PDF text layer with per-page OCR fallback, DOCX
// text runs, or whole-image OCR.
package extract

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DefaultMinPDFTextLen is the text-layer length below which a PDF is treated
// as scanned and routed to OCR.
const DefaultMinPDFTextLen = 64

// ErrContractViolation marks a MIME type that validation should have
// rejected before the pipeline was ever invoked.
var ErrContractViolation = errors.New("mime type reached pipeline without validation")

type Pipeline struct {
	logger        *zap.Logger
	minPDFTextLen int
	textLayer     func(data []byte) (string, error)
	rasterizer    PDFRasterizer
	newOCR        OCRFactory
}

type Option func(*Pipeline)

// WithMinPDFTextLen overrides the scanned-PDF detection threshold.
func WithMinPDFTextLen(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.minPDFTextLen = n
		}
	}
}

// WithRasterizer and WithOCRFactory swap the native backends; used in tests.
func WithRasterizer(r PDFRasterizer) Option {
	return func(p *Pipeline) { p.rasterizer = r }
}

func WithOCRFactory(f OCRFactory) Option {
	return func(p *Pipeline) { p.newOCR = f }
}

func WithTextLayer(f func([]byte) (string, error)) Option {
	return func(p *Pipeline) { p.textLayer = f }
}

func NewPipeline(logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		logger:        logger,
		minPDFTextLen: DefaultMinPDFTextLen,
		textLayer:     pdfTextLayer,
		rasterizer:    NewFitzRasterizer(),
		newOCR:        NewTesseractFactory(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract produces plain text for the declared MIME type. Empty text is a
// valid success (e.g. a blank scanned page). An unsupported MIME type here is
// a programming-contract violation, not a user error.
func (p *Pipeline) Extract(ctx context.Context, mimeType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch mimeType {
	case MimePDF:
		return p.extractPDF(data)
	case MimeDOCX:
		return extractDOCX(data)
	case MimeJPEG, MimePNG, MimeWebP:
		return p.extractImage(mimeType, data)
	default:
		p.logger.Error("unvalidated mime type reached extraction", zap.String("mime_type", mimeType))
		return "", fmt.Errorf("%w: %s", ErrContractViolation, mimeType)
	}
}
