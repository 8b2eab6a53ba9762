package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/docscope/docscope/engine/knowledge"
)

// Config is the CLI-side configuration, loaded from defaults, an optional
// YAML file and DOCSCOPE_-prefixed environment variables, in that precedence
// order.
type Config struct {
	Corpus   string         `koanf:"corpus"`
	Embedder EmbedderConfig `koanf:"embedder"`
	Store    StoreConfig    `koanf:"store"`
	Search   SearchConfig   `koanf:"search"`
}

type EmbedderConfig struct {
	Provider    string `koanf:"provider"`
	BaseURL     string `koanf:"base_url"`
	APIKey      string `koanf:"api_key"`
	Model       string `koanf:"model"`
	Dimension   int    `koanf:"dimension"`
	BatchSize   int    `koanf:"batch_size"`
	Concurrency int    `koanf:"concurrency"`
}

type StoreConfig struct {
	Provider string `koanf:"provider"`
	DSN      string `koanf:"dsn"`
}

type SearchConfig struct {
	Mode          string `koanf:"mode"`
	TopK          int    `koanf:"top_k"`
	ContextTokens int    `koanf:"context_tokens"`
}

func defaultConfig() *Config {
	return &Config{
		Corpus: ".docscope",
		Embedder: EmbedderConfig{
			Provider:    "openai_compatible",
			BaseURL:     "https://api.openai.com/v1",
			Model:       "text-embedding-3-small",
			Dimension:   1536,
			BatchSize:   64,
			Concurrency: 4,
		},
		Store: StoreConfig{Provider: "filesystem"},
		Search: SearchConfig{
			Mode:          string(knowledge.ModeBroad),
			TopK:          knowledge.DefaultTopK,
			ContextTokens: knowledge.DefaultMaxContextTokens,
		},
	}
}

// loadConfig resolves the effective configuration. A missing config file is
// only an error when the path was given explicitly.
func loadConfig(path string) (*Config, error) {
	_ = godotenv.Load()
	k := koanf.New(".")
	explicit := path != ""
	if path == "" {
		path = "docscope.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %q: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("load config %q: %w", path, err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "DOCSCOPE_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, "DOCSCOPE_")
			return strings.ReplaceAll(strings.ToLower(key), "__", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	cfg := defaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
