package extract

import (
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// OCREngine recognizes text in one raster image. Engines are short-lived:
// created, used once or once per page, then closed. Close must run on every
// exit path so native resources are released even when recognition fails.
type OCREngine interface {
	Recognize(image []byte) (string, error)
	Close() error
}

// OCRFactory creates a fresh engine per use.
type OCRFactory func() (OCREngine, error)

type tesseractEngine struct {
	client *gosseract.Client
}

// NewTesseractFactory returns a factory of Tesseract-backed engines for the
// given languages (e.g. "spa", "eng").
func NewTesseractFactory(languages ...string) OCRFactory {
	if len(languages) == 0 {
		languages = []string{"spa", "eng"}
	}
	return func() (OCREngine, error) {
		client := gosseract.NewClient()
		if err := client.SetLanguage(languages...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set ocr languages failed: %w", err)
		}
		return &tesseractEngine{client: client}, nil
	}
}

func (e *tesseractEngine) Recognize(image []byte) (string, error) {
	if err := e.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set ocr image failed: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr recognition failed: %w", err)
	}
	return text, nil
}

func (e *tesseractEngine) Close() error {
	return e.client.Close()
}
