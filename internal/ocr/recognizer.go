package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultLanguage is the only recognition language this system requests.
const DefaultLanguage = "eng"

// ErrRecognition reports a failure inside the recognition provider.
var ErrRecognition = errors.New("text recognition failed")

// ErrOCRNotEnabled is returned when Tesseract support was not compiled in.
// Rebuild with -tags ocr (requires the tesseract and leptonica libraries).
var ErrOCRNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags ocr")

// Recognizer turns an encoded page image into raw text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, language string) (string, error)
}

// Timed wraps a recognizer and records each call's latency in stats.
type Timed struct {
	Recognizer Recognizer
	Stats      *Stats
}

func (t *Timed) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	start := time.Now()
	text, err := t.Recognizer.Recognize(ctx, image, language)
	if t.Stats != nil {
		t.Stats.Record(time.Since(start), err != nil)
	}
	return text, err
}

// Unavailable returns a recognizer that fails every call with err wrapped in
// ErrRecognition.
func Unavailable(err error) Recognizer { return unavailable{err: err} }

type unavailable struct{ err error }

func (u unavailable) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	return "", fmt.Errorf("%w: %w", ErrRecognition, u.err)
}

// ProviderConfig names a recognition provider and its settings.
type ProviderConfig struct {
	Provider   string // "tesseract", "documentai", "ollama" or "openai"
	DocumentAI DocumentAIConfig
	Vision     VisionConfig
}

// New builds the recognizer named by cfg.Provider. An empty provider means
// Tesseract.
func New(ctx context.Context, cfg ProviderConfig) (Recognizer, error) {
	switch cfg.Provider {
	case "", "tesseract":
		t, err := NewTesseract()
		if err != nil {
			return nil, err
		}
		return t, nil
	case "documentai":
		d, err := NewDocumentAI(ctx, cfg.DocumentAI)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "ollama", "openai":
		vc := cfg.Vision
		vc.Backend = cfg.Provider
		v, err := NewVision(vc)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown ocr provider: %q", cfg.Provider)
	}
}
