package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
)

// DefaultVisionPrompt asks a vision model for a plain transcription.
const DefaultVisionPrompt = "Transcribe all text on this page exactly as written. " +
	"Keep the original line breaks. Output only the text, without commentary or formatting."

// VisionConfig selects a vision language model used as a recognizer.
type VisionConfig struct {
	Backend string // "ollama" or "openai"
	Model   string
	BaseURL string // Ollama host or OpenAI-compatible endpoint; empty uses the backend default
	APIKey  string // OpenAI only
	Prompt  string
}

// Vision recognizes page rasters by prompting a multimodal model.
type Vision struct {
	llm     llms.Model
	backend string
	prompt  string
}

// NewVision creates a recognizer backed by the configured model.
func NewVision(cfg VisionConfig) (*Vision, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("vision: model is required")
	}

	var (
		model llms.Model
		err   error
	)
	switch strings.ToLower(cfg.Backend) {
	case "ollama":
		host := cfg.BaseURL
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		model, err = ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(host))
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("vision: openai api key is not set")
		}
		opts := []openai.Option{openai.WithModel(cfg.Model), openai.WithToken(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("vision: unsupported backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("create vision model: %w", err)
	}
	return newVisionWithModel(model, cfg.Backend, cfg.Prompt), nil
}

func newVisionWithModel(model llms.Model, backend, prompt string) *Vision {
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}
	return &Vision{llm: model, backend: strings.ToLower(backend), prompt: prompt}
}

func (v *Vision) Recognize(ctx context.Context, image []byte, language string) (string, error) {
	// OpenAI-style endpoints only accept images as data URLs.
	var imagePart llms.ContentPart
	if v.backend == "openai" {
		imagePart = llms.ImageURLPart("data:image/png;base64," + base64.StdEncoding.EncodeToString(image))
	} else {
		imagePart = llms.BinaryPart("image/png", image)
	}

	prompt := v.prompt
	if language != "" && language != DefaultLanguage {
		prompt += " The text is in language " + language + "."
	}

	resp, err := v.llm.GenerateContent(ctx, []llms.MessageContent{{
		Role:  schema.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{imagePart, llms.TextPart(prompt)},
	}})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRecognition, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty model response", ErrRecognition)
	}
	return stripReasoning(resp.Choices[0].Content), nil
}

// stripReasoning drops a leading <think>...</think> block some models emit.
func stripReasoning(s string) string {
	const open, closeTag = "<think>", "</think>"
	start := strings.Index(s, open)
	if start < 0 {
		return s
	}
	end := strings.Index(s[start:], closeTag)
	if end < 0 {
		return s
	}
	return s[:start] + s[start+end+len(closeTag):]
}
