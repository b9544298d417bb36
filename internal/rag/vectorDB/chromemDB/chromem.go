package chromemDB

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/rag/vectorDB"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/philippgille/chromem-go"
)

var errNoEmbedder = errors.New("embedded store only accepts precomputed embeddings")

// vectors always arrive precomputed, so the collection never embeds by itself
func rejectEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errNoEmbedder
}

// Store is an embedded vector store for local runs without a vector server.
type Store struct {
	db         *chromem.DB
	collection string
	logger     *logger_i.Logger

	mu        sync.Mutex
	dimension int
}

var _ vectorDB.Store = (*Store)(nil)

// NewStore opens a persistent store at path, or an in-memory one when path is empty.
func NewStore(path string, collection string) (*Store, error) {
	log := logger_i.NewLogger("chromem").With("collection", collection)

	var db *chromem.DB
	if path == "" {
		db = chromem.NewDB()
		log.Info("Using in-memory vector store")
	} else {
		var err error
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			log.Error("could not open vector store", "path", path, "error", err)
			return nil, apperror.Store("open", err)
		}
		log.Info("Using persistent vector store", "path", path)
	}

	return &Store{db: db, collection: collection, logger: log}, nil
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && s.dimension != dimension {
		return apperror.Store("ensure collection", fmt.Errorf("collection %s has dimension %d, embeddings have %d", s.collection, s.dimension, dimension))
	}
	if _, err := s.db.GetOrCreateCollection(s.collection, nil, rejectEmbedding); err != nil {
		return apperror.Store("ensure collection", err)
	}
	s.dimension = dimension
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []commonModels.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	coll := s.db.GetCollection(s.collection, rejectEmbedding)
	if coll == nil {
		return apperror.Store("upsert", fmt.Errorf("collection %s does not exist", s.collection))
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.RecordId,
			Metadata:  vectorDB.Metadata(r.Chunk),
			Embedding: r.Vector,
			Content:   r.Chunk.Text,
		}
	}
	// adding an existing id replaces the document
	if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return apperror.Store("upsert", err)
	}
	return nil
}

func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.SearchHit, error) {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	coll := s.db.GetCollection(s.collection, rejectEmbedding)
	if coll == nil {
		return nil, apperror.Store("search", fmt.Errorf("collection %s does not exist", s.collection))
	}

	n := min(k, coll.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := coll.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, apperror.Store("search", err)
	}

	hits := make([]commonModels.SearchHit, len(results))
	for i, r := range results {
		hits[i] = commonModels.SearchHit{
			RecordId: r.ID,
			Chunk:    vectorDB.ChunkFromMetadata(r.Content, r.Metadata),
			Score:    r.Similarity,
		}
	}
	vectorDB.SortByScore(hits)
	log.Debug("search complete", "hits", len(hits))
	return hits, nil
}

func (s *Store) Stats(ctx context.Context) (commonModels.CollectionStats, error) {
	stats := commonModels.CollectionStats{Name: s.collection}
	coll := s.db.GetCollection(s.collection, rejectEmbedding)
	if coll == nil {
		return stats, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stats.Exists = true
	stats.Entities = int64(coll.Count())
	stats.Dimension = s.dimension
	return stats, nil
}

func (s *Store) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(s.collection); err != nil {
		return apperror.Store("drop collection", err)
	}
	s.dimension = 0
	s.logger.Info("Dropped collection")
	return nil
}

func (s *Store) Close() error {
	return nil
}
