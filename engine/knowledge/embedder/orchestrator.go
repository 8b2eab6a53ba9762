package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/docscope/docscope/engine/knowledge"
)

const (
	maxEmbedRetries       = 2
	defaultRateLimitDelay = 2 * time.Second
	defaultTransientDelay = 500 * time.Millisecond
)

// Orchestrator batches texts, bounds concurrent provider calls and applies
// the retry policy. A batch fails atomically: either every text in it gets a
// vector or the whole call errors.
type Orchestrator struct {
	cfg     Config
	client  Client
	cacheMu sync.Mutex
	cache   *lru.Cache[string, []float32]
}

// New constructs a provider-backed orchestrator.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	client, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: *cfg, client: client}, nil
}

// Wrap constructs an orchestrator around an existing transport client.
func Wrap(cfg *Config, client Client) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("embedder config is required")
	}
	if client == nil {
		return nil, fmt.Errorf("embedder %q: client is required", cfg.ID)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: *cfg, client: client}, nil
}

// Dimension returns the configured vector dimension.
func (o *Orchestrator) Dimension() int {
	return o.cfg.Dimension
}

// Provider returns the configured provider discriminator.
func (o *Orchestrator) Provider() Provider {
	return o.cfg.Provider
}

// BatchSize returns the configured texts-per-call batch size.
func (o *Orchestrator) BatchSize() int {
	return o.cfg.BatchSize
}

// EnableCache initializes an LRU cache for single-text embeddings.
func (o *Orchestrator) EnableCache(size int) error {
	if size <= 0 {
		return fmt.Errorf("embedder %q: cache size must be greater than zero", o.cfg.ID)
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return fmt.Errorf("embedder %q: init cache: %w", o.cfg.ID, err)
	}
	o.cacheMu.Lock()
	o.cache = cache
	o.cacheMu.Unlock()
	return nil
}

// Embed returns the vector for one text, consulting the cache when enabled.
func (o *Orchestrator) Embed(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := o.lookupCache(text); ok {
		return vector, nil
	}
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	o.storeCache(text, vectors[0])
	return vectors[0], nil
}

// EmbedBatch embeds every text, preserving input order. Texts are split into
// batches of the configured size and distributed across a bounded pool of
// workers that claim batch indices from a shared cursor. Result writes land
// at disjoint offsets, so no locking is needed.
func (o *Orchestrator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batchSize := o.cfg.BatchSize
	batchCount := (len(texts) + batchSize - 1) / batchSize
	results := make([][]float32, len(texts))
	workers := o.cfg.Concurrency
	if workers > batchCount {
		workers = batchCount
	}
	var cursor atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				claim := int(cursor.Add(1)) - 1
				if claim >= batchCount {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				lo := claim * batchSize
				hi := lo + batchSize
				if hi > len(texts) {
					hi = len(texts)
				}
				vectors, err := o.embedWithRetry(gctx, texts[lo:hi])
				if err != nil {
					return err
				}
				copy(results[lo:hi], vectors)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, o.withContext(err)
	}
	knowledge.RecordEmbedBatch(ctx, string(o.cfg.Provider), time.Since(start))
	return results, nil
}

// embedWithRetry retries rate-limited calls with a long pause and transient
// server errors with a short one; anything else fails immediately.
func (o *Orchestrator) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	var lastStatus int
	rateLimitDelay := o.cfg.RateLimitBackoff
	if rateLimitDelay <= 0 {
		rateLimitDelay = defaultRateLimitDelay
	}
	transientDelay := o.cfg.TransientBackoff
	if transientDelay <= 0 {
		transientDelay = defaultTransientDelay
	}
	backoff := retry.WithMaxRetries(maxEmbedRetries, retry.BackoffFunc(func() (time.Duration, bool) {
		if lastStatus == http.StatusTooManyRequests {
			return rateLimitDelay, false
		}
		return transientDelay, false
	}))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		vectors, err := o.client.EmbedBatch(ctx, texts)
		if err != nil {
			var status *StatusError
			if errors.As(err, &status) && (status.RateLimited() || status.Transient()) {
				lastStatus = status.Code
				return retry.RetryableError(err)
			}
			return err
		}
		if err := validateVectors(texts, vectors); err != nil {
			return err
		}
		out = vectors
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// validateVectors rejects malformed provider responses. A dropped or empty
// item would misalign vectors with their chunks, so the whole batch fails.
func validateVectors(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("received %d embeddings for %d texts", len(vectors), len(texts))
	}
	for i := range vectors {
		if len(vectors[i]) == 0 {
			return fmt.Errorf("embedding %d is missing or empty", i)
		}
	}
	return nil
}

func (o *Orchestrator) lookupCache(text string) ([]float32, bool) {
	o.cacheMu.Lock()
	cache := o.cache
	o.cacheMu.Unlock()
	if cache == nil {
		return nil, false
	}
	value, ok := cache.Get(cacheKey(text))
	if !ok {
		return nil, false
	}
	return cloneVector(value), true
}

func (o *Orchestrator) storeCache(text string, vector []float32) {
	o.cacheMu.Lock()
	cache := o.cache
	o.cacheMu.Unlock()
	if cache == nil || len(vector) == 0 {
		return
	}
	cache.Add(cacheKey(text), cloneVector(vector))
}

func (o *Orchestrator) withContext(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("embedder %q: %w", o.cfg.ID, err)
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}
