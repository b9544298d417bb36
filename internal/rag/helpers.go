package rag

import (
	"context"
	"time"

	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/metrics"
	"github.com/akolanti/AskStan/internal/rag/llm"
)

func (r *Retriever) executeEmbeddingStep(ctx context.Context, query string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	return r.embedder.GetEmbedding(ctx, query)
}

func (r *Retriever) executeVectorSearchStep(ctx context.Context, vector []float32, k int) ([]commonModels.SearchHit, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	return r.store.SimilaritySearch(ctx, vector, k)
}

func (s *service) executeLLMStep(ctx context.Context, req llm.Request) (llm.Stream, error) {
	start := time.Now()
	stream, err := s.llmProvider.Stream(ctx, req)
	if err != nil {
		metrics.CaptureExecutionMetrics("llm_open", time.Since(start))
		return nil, err
	}
	return timedStream(stream, start), nil
}

// timedStream records time to first fragment and total stream time.
func timedStream(stream llm.Stream, start time.Time) llm.Stream {
	return func(yield func(string, error) bool) {
		first := true
		defer func() { metrics.CaptureExecutionMetrics("llm_stream", time.Since(start)) }()

		for fragment, err := range stream {
			if first && err == nil {
				metrics.CaptureExecutionMetrics("llm_first_token", time.Since(start))
				first = false
			}
			if !yield(fragment, err) {
				return
			}
		}
	}
}
