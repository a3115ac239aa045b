package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// maxOCRDimension bounds the longest image edge before recognition; larger
// uploads are downscaled to keep OCR memory predictable.
const maxOCRDimension = 2400

func decodeImage(mimeType string, data []byte) (image.Image, error) {
	switch mimeType {
	case MimeJPEG:
		return jpeg.Decode(bytes.NewReader(data))
	case MimePNG:
		return png.Decode(bytes.NewReader(data))
	case MimeWebP:
		return webp.Decode(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// prepareImage decodes and, when oversized, downscales the image, returning
// PNG bytes ready for recognition.
func prepareImage(mimeType string, data []byte) ([]byte, error) {
	img, err := decodeImage(mimeType, data)
	if err != nil {
		return nil, fmt.Errorf("decode image failed: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxOCRDimension || h > maxOCRDimension {
		scale := float64(maxOCRDimension) / float64(w)
		if h > w {
			scale = float64(maxOCRDimension) / float64(h)
		}
		dw, dh := int(float64(w)*scale), int(float64(h)*scale)
		dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image failed: %w", err)
	}
	return buf.Bytes(), nil
}

// extractImage runs recognition over the whole image with a fresh engine,
// torn down on every exit path.
func (p *Pipeline) extractImage(mimeType string, data []byte) (string, error) {
	prepared, err := prepareImage(mimeType, data)
	if err != nil {
		return "", err
	}

	engine, err := p.newOCR()
	if err != nil {
		return "", err
	}
	defer engine.Close()

	return engine.Recognize(prepared)
}
