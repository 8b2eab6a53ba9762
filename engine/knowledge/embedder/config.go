package embedder

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider is the closed set of supported embedding back ends.
type Provider string

const (
	// ProviderOpenAICompatible targets any OpenAI-style /embeddings endpoint.
	ProviderOpenAICompatible Provider = "openai_compatible"
	// ProviderLocal targets a localhost Ollama-style endpoint that accepts
	// one text per call.
	ProviderLocal Provider = "local"
)

var (
	errMissingID          = errors.New("embedder id is required")
	errMissingProvider    = errors.New("embedder provider is required")
	errMissingModel       = errors.New("embedder model is required")
	errMissingBaseURL     = errors.New("embedder base url is required")
	errInvalidDimension   = errors.New("embedder dimension must be greater than zero")
	errInvalidBatchSize   = errors.New("embedder batch size must be greater than zero")
	errInvalidConcurrency = errors.New("embedder concurrency must be greater than zero")
)

// Config describes one embedding provider instance. The backoff fields are
// optional; zero values select the package defaults.
type Config struct {
	ID               string
	Provider         Provider
	BaseURL          string
	APIKey           string
	Model            string
	Dimension        int
	BatchSize        int
	Concurrency      int
	RateLimitBackoff time.Duration
	TransientBackoff time.Duration
}

func validateConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return errMissingID
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingProvider)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingModel)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errMissingBaseURL)
	}
	if cfg.Dimension <= 0 {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidDimension)
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidBatchSize)
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("embedder %q: %w", cfg.ID, errInvalidConcurrency)
	}
	return nil
}
