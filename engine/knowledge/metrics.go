package knowledge

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce        sync.Once
	metricsInitErr     error
	queryLatencyHist   metric.Float64Histogram
	chunkCounter       metric.Int64Counter
	retrievalEmptyCtr  metric.Int64Counter
	embedBatchDuration metric.Float64Histogram
)

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("docscope/knowledge")
		queryLatencyHist, metricsInitErr = meter.Float64Histogram(
			"docscope_knowledge_query_latency_seconds",
			metric.WithDescription("Latency of retrieval queries"),
		)
		if metricsInitErr != nil {
			return
		}
		chunkCounter, metricsInitErr = meter.Int64Counter(
			"docscope_knowledge_chunks_total",
			metric.WithDescription("Chunks produced during ingestion"),
		)
		if metricsInitErr != nil {
			return
		}
		retrievalEmptyCtr, metricsInitErr = meter.Int64Counter(
			"docscope_knowledge_retrieval_empty_total",
			metric.WithDescription("Queries that returned zero hits above threshold"),
		)
		if metricsInitErr != nil {
			return
		}
		embedBatchDuration, metricsInitErr = meter.Float64Histogram(
			"docscope_knowledge_embed_batch_seconds",
			metric.WithDescription("Duration of embedding batch calls"),
		)
	})
	return metricsInitErr
}

func RecordQueryLatency(ctx context.Context, mode string, d time.Duration) {
	if err := ensureMetrics(); err != nil || queryLatencyHist == nil {
		return
	}
	queryLatencyHist.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("mode", mode)))
}

func RecordIngestChunks(ctx context.Context, documentID string, chunks int) {
	if chunks <= 0 {
		return
	}
	if err := ensureMetrics(); err != nil || chunkCounter == nil {
		return
	}
	chunkCounter.Add(ctx, int64(chunks), metric.WithAttributes(attribute.String("document_id", documentID)))
}

func RecordRetrievalEmpty(ctx context.Context, mode string) {
	if err := ensureMetrics(); err != nil || retrievalEmptyCtr == nil {
		return
	}
	retrievalEmptyCtr.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

func RecordEmbedBatch(ctx context.Context, provider string, d time.Duration) {
	if err := ensureMetrics(); err != nil || embedBatchDuration == nil {
		return
	}
	embedBatchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
}
