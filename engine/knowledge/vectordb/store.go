package vectordb

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	errMissingProvider  = errors.New("vector collection provider is required")
	errMissingPath      = errors.New("vector collection path is required")
	errInvalidDimension = errors.New("vector collection dimension must be greater than zero")
)

// New instantiates a single collection backed by the requested provider.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case ProviderMemory:
		return newMemoryStore(cfg), nil
	case ProviderFilesystem:
		return newFileStore(cfg)
	case ProviderPGVector:
		return newPGStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("vector collection: provider %q is not supported", cfg.Provider)
	}
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("vector collection config is required")
	}
	if strings.TrimSpace(string(cfg.Provider)) == "" {
		return errMissingProvider
	}
	if cfg.Dimension <= 0 {
		return errInvalidDimension
	}
	switch cfg.Provider {
	case ProviderFilesystem:
		if strings.TrimSpace(cfg.Path) == "" {
			return errMissingPath
		}
	case ProviderPGVector:
		if strings.TrimSpace(cfg.DSN) == "" {
			return errors.New("vector collection dsn is required")
		}
	}
	if cfg.MaxTopK < 0 {
		return errors.New("vector collection max_top_k must be non-negative")
	}
	return nil
}
