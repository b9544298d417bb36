package embedding

import "context"

// Embedder turns text into fixed-length vectors using a remote model.
// Failures are reported as apperror ProviderError.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
	BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
