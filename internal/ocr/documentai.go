package ocr

import (
	"context"
	"fmt"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// DocumentAIConfig identifies a Google Document AI OCR processor.
type DocumentAIConfig struct {
	ProjectID       string `yaml:"project"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor"`
	CredentialsFile string `yaml:"credentials_file"` // empty uses application default credentials
}

// ProcessorName returns the fully qualified processor resource name.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAI recognizes page rasters with a Google Document AI OCR processor.
type DocumentAI struct {
	client *documentai.DocumentProcessorClient
	name   string
}

// NewDocumentAI dials the regional Document AI endpoint. Close it when done.
func NewDocumentAI(ctx context.Context, cfg DocumentAIConfig) (*DocumentAI, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("documentai: project and processor are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}

	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create document ai client: %w", err)
	}
	return &DocumentAI{client: client, name: cfg.ProcessorName()}, nil
}

func (d *DocumentAI) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	req := &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  image,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}
	if hint := languageHint(lang); hint != "" {
		req.ProcessOptions = &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{LanguageHints: []string{hint}},
			},
		}
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: document ai: %v", ErrRecognition, err)
	}
	return resp.GetDocument().GetText(), nil
}

// Close releases the gRPC connection.
func (d *DocumentAI) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

// languageHint maps a Tesseract language code ("eng") to a BCP 47 tag ("en").
func languageHint(lang string) string {
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
