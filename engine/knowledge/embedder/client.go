package embedder

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is the raw transport contract: one network call per batch, same
// length and order as the input, or an error. Non-2xx responses surface as
// *StatusError so the retry policy can distinguish them.
type Client interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// StatusError carries the HTTP status of a failed provider call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("embedding provider returned status %d: %s", e.Code, e.Body)
}

// RateLimited reports whether the provider asked us to back off.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

// Transient reports whether the failure is a server-side error worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code >= 500
}

const clientTimeout = 60 * time.Second

func buildClient(cfg *Config) (Client, error) {
	switch cfg.Provider {
	case ProviderOpenAICompatible:
		return newOpenAIClient(cfg), nil
	case ProviderLocal:
		return newLocalClient(cfg), nil
	default:
		return nil, fmt.Errorf("embedder %q: provider %q is not supported", cfg.ID, cfg.Provider)
	}
}

type openAIClient struct {
	http  *resty.Client
	model string
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedItem struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type openAIEmbedResponse struct {
	Data []openAIEmbedItem `json:"data"`
}

func newOpenAIClient(cfg *Config) *openAIClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(clientTimeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &openAIClient{http: client, model: cfg.Model}
}

func (c *openAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var parsed openAIEmbedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(openAIEmbedRequest{Model: c.model, Input: texts}).
		SetResult(&parsed).
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Body: truncateBody(resp.String())}
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d items for %d inputs", len(parsed.Data), len(texts))
	}
	// Providers may return items out of order; the index field is
	// authoritative.
	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	vectors := make([][]float32, len(texts))
	for i := range parsed.Data {
		item := parsed.Data[i]
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

type localClient struct {
	http  *resty.Client
	model string
}

type localEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func newLocalClient(cfg *Config) *localClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(clientTimeout).
		SetHeader("Content-Type", "application/json")
	return &localClient{http: client, model: cfg.Model}
}

// EmbedBatch issues one request per text: the local endpoint accepts a single
// prompt per call. Order is preserved by construction.
func (c *localClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		var parsed localEmbedResponse
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(localEmbedRequest{Model: c.model, Prompt: text}).
			SetResult(&parsed).
			Post("/api/embeddings")
		if err != nil {
			return nil, fmt.Errorf("embedding request failed: %w", err)
		}
		if resp.IsError() {
			return nil, &StatusError{Code: resp.StatusCode(), Body: truncateBody(resp.String())}
		}
		vectors[i] = parsed.Embedding
	}
	return vectors, nil
}

func truncateBody(body string) string {
	const limit = 256
	if len(body) > limit {
		return body[:limit]
	}
	return body
}
