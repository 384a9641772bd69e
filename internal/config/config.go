package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Pipeline
	MaxQueueSize int           `yaml:"max_queue_size"`
	JobTTL       time.Duration `yaml:"job_ttl"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Line reconstruction
	DefaultFragmentHeight float64 `yaml:"default_fragment_height"`

	// OCR fallback
	OCRMinTextLength int     `yaml:"ocr_min_text_length"`
	OCRRenderScale   float64 `yaml:"ocr_render_scale"`
	OCRLanguage      string  `yaml:"ocr_language"`
	OCRProvider      string  `yaml:"ocr_provider"`
	OCRMaxRasterDim  int     `yaml:"ocr_max_raster_dim"`
	PdftoppmPath     string  `yaml:"pdftoppm_path"`

	DocumentAI DocumentAI `yaml:"documentai"`
	Vision     Vision     `yaml:"vision"`
}

// DocumentAI names the Google Document AI processor used when OCRProvider is
// "documentai".
type DocumentAI struct {
	Project         string `yaml:"project"`
	Location        string `yaml:"location"`
	Processor       string `yaml:"processor"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Vision configures the ollama and openai providers.
type Vision struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Prompt  string `yaml:"prompt"`
}

const (
	defaultPort           = "8090"
	defaultMaxQueueSize   = 16
	defaultJobTTL         = 1 * time.Hour
	defaultMaxUploadBytes = 52428800 // 50MB
	defaultFragmentHeight = 12.0
	defaultMinTextLength  = 50
	defaultRenderScale    = 2.0
	defaultLanguage       = "eng"
	defaultProvider       = "tesseract"
	defaultMaxRasterDim   = 6000
	defaultPdftoppm       = "pdftoppm"
	defaultDAILocation    = "us"
)

// Load reads the environment and then overlays the YAML file named by
// PDFSEARCH_CONFIG, if any.
func Load() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", defaultPort),

		APIKey: os.Getenv("PDFSEARCH_API_KEY"),

		MaxQueueSize: envInt("MAX_QUEUE_SIZE", defaultMaxQueueSize),
		JobTTL:       envDuration("JOB_TTL", defaultJobTTL),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),

		DefaultFragmentHeight: envFloat("DEFAULT_FRAGMENT_HEIGHT", defaultFragmentHeight),

		OCRMinTextLength: envInt("OCR_MIN_TEXT_LENGTH", defaultMinTextLength),
		OCRRenderScale:   envFloat("OCR_RENDER_SCALE", defaultRenderScale),
		OCRLanguage:      envOr("OCR_LANGUAGE", defaultLanguage),
		OCRProvider:      envOr("OCR_PROVIDER", defaultProvider),
		OCRMaxRasterDim:  envInt("OCR_MAX_RASTER_DIM", defaultMaxRasterDim),
		PdftoppmPath:     envOr("PDFTOPPM_PATH", defaultPdftoppm),

		DocumentAI: DocumentAI{
			Project:         os.Getenv("DOCUMENTAI_PROJECT"),
			Location:        envOr("DOCUMENTAI_LOCATION", defaultDAILocation),
			Processor:       os.Getenv("DOCUMENTAI_PROCESSOR"),
			CredentialsFile: os.Getenv("DOCUMENTAI_CREDENTIALS_FILE"),
		},

		Vision: Vision{
			Model:   os.Getenv("VISION_MODEL"),
			BaseURL: os.Getenv("VISION_BASE_URL"),
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Prompt:  os.Getenv("VISION_PROMPT"),
		},
	}

	if path := os.Getenv("PDFSEARCH_CONFIG"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// overlayFile replaces fields with the non-zero values found in a YAML file.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.overlay(data)
}

func (c *Config) overlay(data []byte) error {
	var f Config
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&c.Port, f.Port)
	setString(&c.APIKey, f.APIKey)
	setInt(&c.MaxQueueSize, f.MaxQueueSize)
	if f.JobTTL != 0 {
		c.JobTTL = f.JobTTL
	}
	if f.MaxUploadBytes != 0 {
		c.MaxUploadBytes = f.MaxUploadBytes
	}
	setFloat(&c.DefaultFragmentHeight, f.DefaultFragmentHeight)
	setInt(&c.OCRMinTextLength, f.OCRMinTextLength)
	setFloat(&c.OCRRenderScale, f.OCRRenderScale)
	setString(&c.OCRLanguage, f.OCRLanguage)
	setString(&c.OCRProvider, f.OCRProvider)
	setInt(&c.OCRMaxRasterDim, f.OCRMaxRasterDim)
	setString(&c.PdftoppmPath, f.PdftoppmPath)
	setString(&c.DocumentAI.Project, f.DocumentAI.Project)
	setString(&c.DocumentAI.Location, f.DocumentAI.Location)
	setString(&c.DocumentAI.Processor, f.DocumentAI.Processor)
	setString(&c.DocumentAI.CredentialsFile, f.DocumentAI.CredentialsFile)
	setString(&c.Vision.Model, f.Vision.Model)
	setString(&c.Vision.BaseURL, f.Vision.BaseURL)
	setString(&c.Vision.APIKey, f.Vision.APIKey)
	setString(&c.Vision.Prompt, f.Vision.Prompt)
	return nil
}

func (c *Config) applyDefaults() {
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = defaultMaxQueueSize
	}
	if c.JobTTL <= 0 {
		c.JobTTL = defaultJobTTL
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.DefaultFragmentHeight <= 0 {
		c.DefaultFragmentHeight = defaultFragmentHeight
	}
	if c.OCRMinTextLength <= 0 {
		c.OCRMinTextLength = defaultMinTextLength
	}
	if c.OCRRenderScale <= 0 {
		c.OCRRenderScale = defaultRenderScale
	}
	if c.OCRMaxRasterDim <= 0 {
		c.OCRMaxRasterDim = defaultMaxRasterDim
	}
}

func (c Config) Validate() error {
	if c.OCRRenderScale < 2.0 || c.OCRRenderScale > 2.5 {
		return fmt.Errorf("OCR_RENDER_SCALE must be between 2.0 and 2.5, got %g", c.OCRRenderScale)
	}
	switch c.OCRProvider {
	case "tesseract":
	case "documentai":
		if c.DocumentAI.Project == "" || c.DocumentAI.Processor == "" {
			return fmt.Errorf("DOCUMENTAI_PROJECT and DOCUMENTAI_PROCESSOR are required for the documentai provider")
		}
	case "ollama", "openai":
		if c.Vision.Model == "" {
			return fmt.Errorf("VISION_MODEL is required for the %s provider", c.OCRProvider)
		}
		if c.OCRProvider == "openai" && c.Vision.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown OCR_PROVIDER %q", c.OCRProvider)
	}
	if c.OCRLanguage == "" {
		return fmt.Errorf("OCR_LANGUAGE is required")
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
