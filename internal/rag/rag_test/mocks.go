package rag_test

import (
	"context"

	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/rag/llm"
)

// MockVectorDB implements vectorDB.Store
type MockVectorDB struct {
	OnSimilaritySearch func(ctx context.Context, vector []float32, k int) ([]commonModels.SearchHit, error)
	OnEnsureCollection func(ctx context.Context, dimension int) error
	OnUpsert           func(ctx context.Context, records []commonModels.VectorRecord) error
}

func (m *MockVectorDB) SimilaritySearch(ctx context.Context, v []float32, k int) ([]commonModels.SearchHit, error) {
	if m.OnSimilaritySearch != nil {
		return m.OnSimilaritySearch(ctx, v, k)
	}
	return nil, nil
}

func (m *MockVectorDB) EnsureCollection(ctx context.Context, dimension int) error {
	if m.OnEnsureCollection != nil {
		return m.OnEnsureCollection(ctx, dimension)
	}
	return nil
}

func (m *MockVectorDB) Upsert(ctx context.Context, records []commonModels.VectorRecord) error {
	if m.OnUpsert != nil {
		return m.OnUpsert(ctx, records)
	}
	return nil
}

func (m *MockVectorDB) Stats(ctx context.Context) (commonModels.CollectionStats, error) {
	return commonModels.CollectionStats{}, nil
}

func (m *MockVectorDB) Drop(ctx context.Context) error { return nil }
func (m *MockVectorDB) Close() error                   { return nil }

type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, text string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	return make([][]float32, len(chunks)), nil
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return []float32{0.1}, nil
}

// MockLLM implements llm.Provider
type MockLLM struct {
	OnStream func(ctx context.Context, req llm.Request) (llm.Stream, error)
	LastReq  llm.Request
}

func (m *MockLLM) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	m.LastReq = req
	if m.OnStream != nil {
		return m.OnStream(ctx, req)
	}
	return Fragments("mocked ", "llm ", "response"), nil
}

// Fragments is a single-use stream of the given parts.
func Fragments(parts ...string) llm.Stream {
	return llm.OnceStream(func(yield func(string, error) bool) {
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	})
}
