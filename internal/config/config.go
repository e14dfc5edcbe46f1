package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8082"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"200"`
	ContextDir      string `envconfig:"CONTEXT_DIR" default:"./data/context"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Embeddings
	EmbeddingsProvider string `envconfig:"EMBEDDINGS_PROVIDER" default:"openai"`
	EmbeddingsURL      string `envconfig:"EMBEDDINGS_URL" default:"http://localhost:5002/v1/embeddings"`
	EmbeddingsModel    string `envconfig:"EMBEDDINGS_MODEL" default:"text-embedding-nomic-embed-text-v2-moe"`
	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`

	// Embedding cache
	CacheTTLSeconds int `envconfig:"CACHE_TTL_SECONDS" default:"3600"`
	CacheCapacity   int `envconfig:"CACHE_CAPACITY" default:"128"`

	// Extraction / OCR
	OCRDPI            int `envconfig:"OCR_DPI" default:"300"`
	OCRWorkers        int `envconfig:"OCR_WORKERS" default:"2"`
	CancelCheckStride int `envconfig:"CANCEL_CHECK_STRIDE" default:"1"`
	StreamThresholdMB int `envconfig:"STREAM_THRESHOLD_MB" default:"10"`
	JobGraceSeconds   int `envconfig:"JOB_GRACE_SECONDS" default:"60"`
}

func Load() (*Config, error) {
	// Env vars might be set in the shell instead, so load errors are ignored.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.EmbeddingsProvider != "openai" && c.EmbeddingsProvider != "gemini" {
		return fmt.Errorf("unknown embeddings provider: %s", c.EmbeddingsProvider)
	}
	if c.EmbeddingsProvider == "openai" && c.EmbeddingsURL == "" {
		return fmt.Errorf("%w: EMBEDDINGS_URL", ErrMissingRequired)
	}
	if c.EmbeddingsProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	if c.ContextDir == "" {
		return fmt.Errorf("%w: CONTEXT_DIR", ErrMissingRequired)
	}
	return nil
}
