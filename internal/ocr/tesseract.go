//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract recognizes text with the local Tesseract engine via gosseract.
// Calls are serialized because a gosseract client holds one image at a time.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a Tesseract recognizer. Close it when done.
func NewTesseract() (*Tesseract, error) {
	return &Tesseract{client: gosseract.NewClient()}, nil
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if language == "" {
		language = DefaultLanguage
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("%w: set language %s: %v", ErrRecognition, language, err)
	}
	if err := t.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("%w: set image: %v", ErrRecognition, err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognition, err)
	}
	return text, nil
}

// Close releases the Tesseract handle. Safe on a nil client.
func (t *Tesseract) Close() error {
	if t == nil || t.client == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.client.Close()
	t.client = nil
	return err
}
