package extract

import (
	"bytes"
	"errors"
	"fmt"
)

// Supported document MIME types.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

var (
	ErrUnsupportedMime   = errors.New("unsupported mime type")
	ErrSignatureMismatch = errors.New("file content does not match declared mime type")
)

var magicSignatures = map[string][]byte{
	MimePDF:  {0x25, 0x50, 0x44, 0x46}, // %PDF
	MimeDOCX: {0x50, 0x4B, 0x03, 0x04}, // zip local file header
	MimeJPEG: {0xFF, 0xD8, 0xFF},
	MimePNG:  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	MimeWebP: {0x52, 0x49, 0x46, 0x46}, // RIFF, with WEBP at offset 8
}

// Allowed reports whether the declared MIME type is on the upload allow-list.
func Allowed(mimeType string) bool {
	_, ok := magicSignatures[mimeType]
	return ok
}

// CheckSignature verifies that the leading bytes of data match the known
// magic-number signature of the declared MIME type. It rejects before any
// state is created downstream.
func CheckSignature(mimeType string, data []byte) error {
	sig, ok := magicSignatures[mimeType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedMime, mimeType)
	}
	if len(data) < len(sig) || !bytes.Equal(data[:len(sig)], sig) {
		return ErrSignatureMismatch
	}
	if mimeType == MimeWebP {
		if len(data) < 12 || !bytes.Equal(data[8:12], []byte("WEBP")) {
			return ErrSignatureMismatch
		}
	}
	return nil
}
