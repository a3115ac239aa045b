package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// pdfTextLayer extracts the embedded text layer of a PDF. A PDF with no
// extractable text yields an empty string and no error.
func pdfTextLayer(data []byte) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}

// RasterDoc renders the pages of an open PDF. Close releases the underlying
// render resources and must run on every exit path.
type RasterDoc interface {
	NumPages() int
	RenderPage(index int) ([]byte, error)
	Close() error
}

// PDFRasterizer opens a PDF for page-by-page rendering.
type PDFRasterizer interface {
	Open(data []byte) (RasterDoc, error)
}

const rasterDPI = 200

type fitzRasterizer struct{}

// NewFitzRasterizer rasterizes PDF pages through MuPDF.
func NewFitzRasterizer() PDFRasterizer {
	return fitzRasterizer{}
}

func (fitzRasterizer) Open(data []byte) (RasterDoc, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rendering failed: %w", err)
	}
	return &fitzDoc{doc: doc}, nil
}

type fitzDoc struct {
	doc *fitz.Document
}

func (d *fitzDoc) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDoc) RenderPage(index int) ([]byte, error) {
	img, err := d.doc.ImagePNG(index, rasterDPI)
	if err != nil {
		return nil, fmt.Errorf("render pdf page %d failed: %w", index, err)
	}
	return img, nil
}

func (d *fitzDoc) Close() error {
	return d.doc.Close()
}

// extractPDF tries the text layer first and falls back to per-page OCR when
// the extracted text is too short to be a real text layer (scanned PDFs).
// Page results are concatenated with a blank-line separator.
func (p *Pipeline) extractPDF(data []byte) (string, error) {
	text, err := p.textLayer(data)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(text)) >= p.minPDFTextLen {
		return text, nil
	}

	doc, err := p.rasterizer.Open(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	engine, err := p.newOCR()
	if err != nil {
		return "", err
	}
	defer engine.Close()

	pages := make([]string, 0, doc.NumPages())
	for i := 0; i < doc.NumPages(); i++ {
		img, err := doc.RenderPage(i)
		if err != nil {
			return "", err
		}
		pageText, err := engine.Recognize(img)
		if err != nil {
			return "", err
		}
		pages = append(pages, strings.TrimSpace(pageText))
	}
	return strings.Join(pages, "\n\n"), nil
}
