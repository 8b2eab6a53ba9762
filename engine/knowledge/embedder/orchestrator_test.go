package embedder_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docscope/docscope/engine/knowledge/embedder"
)

func testConfig(batchSize, concurrency int) *embedder.Config {
	return &embedder.Config{
		ID:               "test",
		Provider:         embedder.ProviderOpenAICompatible,
		BaseURL:          "http://localhost:9999",
		Model:            "test-model",
		Dimension:        3,
		BatchSize:        batchSize,
		Concurrency:      concurrency,
		RateLimitBackoff: time.Millisecond,
		TransientBackoff: time.Millisecond,
	}
}

// stubClient returns a deterministic vector per text so order can be checked.
type stubClient struct {
	mu       sync.Mutex
	calls    int
	inFlight atomic.Int64
	maxSeen  atomic.Int64
	failures []error
	onBatch  func(texts []string) ([][]float32, error)
}

func (s *stubClient) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if current <= seen || s.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}
	s.mu.Lock()
	s.calls++
	var failure error
	if len(s.failures) > 0 {
		failure = s.failures[0]
		s.failures = s.failures[1:]
	}
	s.mu.Unlock()
	if failure != nil {
		return nil, failure
	}
	if s.onBatch != nil {
		return s.onBatch(texts)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1, 2}
	}
	return vectors, nil
}

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestWrap(t *testing.T) {
	t.Run("ShouldRejectNilClient", func(t *testing.T) {
		_, err := embedder.Wrap(testConfig(2, 2), nil)
		require.Error(t, err)
	})
	t.Run("ShouldRejectInvalidConfig", func(t *testing.T) {
		cfg := testConfig(0, 2)
		_, err := embedder.Wrap(cfg, &stubClient{})
		require.Error(t, err)
		cfg = testConfig(2, 0)
		_, err = embedder.Wrap(cfg, &stubClient{})
		require.Error(t, err)
	})
	t.Run("ShouldRejectUnknownProvider", func(t *testing.T) {
		cfg := testConfig(2, 2)
		cfg.Provider = "mystery"
		_, err := embedder.New(cfg)
		require.Error(t, err)
	})
}

func TestOrchestrator_EmbedBatch(t *testing.T) {
	ctx := context.Background()
	t.Run("ShouldPreserveInputOrderAcrossBatches", func(t *testing.T) {
		client := &stubClient{}
		orch, err := embedder.Wrap(testConfig(2, 4), client)
		require.NoError(t, err)
		texts := make([]string, 11)
		for i := range texts {
			texts[i] = fmt.Sprintf("text-%02d-%s", i, strings.Repeat("x", i))
		}
		vectors, err := orch.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		require.Len(t, vectors, len(texts))
		for i, text := range texts {
			assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d misaligned", i)
		}
		assert.Equal(t, 6, client.callCount())
	})
	t.Run("ShouldBoundConcurrentCalls", func(t *testing.T) {
		client := &stubClient{}
		orch, err := embedder.Wrap(testConfig(1, 3), client)
		require.NoError(t, err)
		texts := make([]string, 24)
		for i := range texts {
			texts[i] = fmt.Sprintf("t%d", i)
		}
		_, err = orch.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		assert.LessOrEqual(t, client.maxSeen.Load(), int64(3))
	})
	t.Run("ShouldReturnNilForEmptyInput", func(t *testing.T) {
		orch, err := embedder.Wrap(testConfig(2, 2), &stubClient{})
		require.NoError(t, err)
		vectors, err := orch.EmbedBatch(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, vectors)
	})
	t.Run("ShouldRetryRateLimitThenSucceed", func(t *testing.T) {
		client := &stubClient{failures: []error{
			&embedder.StatusError{Code: 429},
			&embedder.StatusError{Code: 429},
		}}
		orch, err := embedder.Wrap(testConfig(4, 1), client)
		require.NoError(t, err)
		vectors, err := orch.EmbedBatch(ctx, []string{"a", "b"})
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, 3, client.callCount())
	})
	t.Run("ShouldRetryServerErrorThenSucceed", func(t *testing.T) {
		client := &stubClient{failures: []error{&embedder.StatusError{Code: 503}}}
		orch, err := embedder.Wrap(testConfig(4, 1), client)
		require.NoError(t, err)
		_, err = orch.EmbedBatch(ctx, []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, 2, client.callCount())
	})
	t.Run("ShouldGiveUpAfterRetryBudget", func(t *testing.T) {
		client := &stubClient{failures: []error{
			&embedder.StatusError{Code: 429},
			&embedder.StatusError{Code: 429},
			&embedder.StatusError{Code: 429},
			&embedder.StatusError{Code: 429},
		}}
		orch, err := embedder.Wrap(testConfig(4, 1), client)
		require.NoError(t, err)
		_, err = orch.EmbedBatch(ctx, []string{"a"})
		require.Error(t, err)
		var status *embedder.StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, 3, client.callCount())
	})
	t.Run("ShouldFailImmediatelyOnClientError", func(t *testing.T) {
		client := &stubClient{failures: []error{&embedder.StatusError{Code: 400}}}
		orch, err := embedder.Wrap(testConfig(4, 1), client)
		require.NoError(t, err)
		_, err = orch.EmbedBatch(ctx, []string{"a"})
		require.Error(t, err)
		assert.Equal(t, 1, client.callCount())
	})
	t.Run("ShouldFailImmediatelyOnNonHTTPError", func(t *testing.T) {
		client := &stubClient{failures: []error{errors.New("connection refused")}}
		orch, err := embedder.Wrap(testConfig(4, 1), client)
		require.NoError(t, err)
		_, err = orch.EmbedBatch(ctx, []string{"a"})
		require.Error(t, err)
		assert.Equal(t, 1, client.callCount())
	})
	t.Run("ShouldRejectLengthMismatch", func(t *testing.T) {
		client := &stubClient{onBatch: func(texts []string) ([][]float32, error) {
			return [][]float32{{1, 2, 3}}, nil
		}}
		orch, err := embedder.Wrap(testConfig(4, 1), client)
		require.NoError(t, err)
		_, err = orch.EmbedBatch(ctx, []string{"a", "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 texts")
		assert.Equal(t, 1, client.callCount())
	})
	t.Run("ShouldRejectEmptyVector", func(t *testing.T) {
		client := &stubClient{onBatch: func(texts []string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			vectors[0] = []float32{1}
			return vectors, nil
		}}
		orch, err := embedder.Wrap(testConfig(4, 1), client)
		require.NoError(t, err)
		_, err = orch.EmbedBatch(ctx, []string{"a", "b"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing or empty")
	})
}

func TestOrchestrator_Cache(t *testing.T) {
	ctx := context.Background()
	t.Run("ShouldServeRepeatQueriesFromCache", func(t *testing.T) {
		client := &stubClient{}
		orch, err := embedder.Wrap(testConfig(1, 1), client)
		require.NoError(t, err)
		require.NoError(t, orch.EnableCache(16))
		first, err := orch.Embed(ctx, "query text")
		require.NoError(t, err)
		second, err := orch.Embed(ctx, "query text")
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, client.callCount())
	})
	t.Run("ShouldRejectNonPositiveCacheSize", func(t *testing.T) {
		orch, err := embedder.Wrap(testConfig(1, 1), &stubClient{})
		require.NoError(t, err)
		require.Error(t, orch.EnableCache(0))
	})
}

func TestHandle(t *testing.T) {
	t.Run("ShouldSwapAtomically", func(t *testing.T) {
		first, err := embedder.Wrap(testConfig(1, 1), &stubClient{})
		require.NoError(t, err)
		second, err := embedder.Wrap(testConfig(2, 2), &stubClient{})
		require.NoError(t, err)
		handle := embedder.NewHandle(first)
		assert.Same(t, first, handle.Load())
		previous := handle.Swap(second)
		assert.Same(t, first, previous)
		assert.Same(t, second, handle.Load())
	})
	t.Run("ShouldStartEmpty", func(t *testing.T) {
		handle := embedder.NewHandle(nil)
		assert.Nil(t, handle.Load())
	})
}
