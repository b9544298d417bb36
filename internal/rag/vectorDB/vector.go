package vectorDB

import (
	"context"
	"slices"

	"github.com/akolanti/AskStan/internal/domain/commonModels"
)

// Store persists chunk vectors in a single named collection.
// SimilaritySearch returns hits ordered by descending score and fails with a
// StoreError when the collection is missing or the backend is unreachable.
type Store interface {
	EnsureCollection(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, records []commonModels.VectorRecord) error
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.SearchHit, error)
	Stats(ctx context.Context) (commonModels.CollectionStats, error)
	Drop(ctx context.Context) error
	Close() error
}

// SortByScore orders hits by descending score, keeping the backend order for ties.
func SortByScore(hits []commonModels.SearchHit) {
	slices.SortStableFunc(hits, func(a, b commonModels.SearchHit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
}
