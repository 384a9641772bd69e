//go:build !ocr

package ocr

import "context"

// Tesseract is a placeholder used when the "ocr" build tag is not set.
type Tesseract struct{}

// NewTesseract returns ErrOCRNotEnabled.
func NewTesseract() (*Tesseract, error) {
	return nil, ErrOCRNotEnabled
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	return "", ErrOCRNotEnabled
}

// Close is a no-op. Safe on a nil receiver.
func (t *Tesseract) Close() error {
	return nil
}
