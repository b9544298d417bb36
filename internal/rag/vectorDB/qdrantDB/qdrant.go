package qdrantDB

import (
	"context"
	"fmt"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/rag/vectorDB"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

type ClientHolder struct {
	QObj       *qdrant.Client
	collection string
	logger     *logger_i.Logger
}

var _ vectorDB.Store = (*ClientHolder)(nil)

func NewStore(host string, port int, collection string) (*ClientHolder, error) {
	log := logger_i.NewLogger("Qdrant").With("collection", collection)

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		log.Error("could not instantiate", "error", err)
		return nil, apperror.Store("connect", err)
	}
	log.Info("Qdrant client created", "host", host, "port", port)

	return &ClientHolder{QObj: client, collection: collection, logger: log}, nil
}

func (db *ClientHolder) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := db.QObj.CollectionExists(ctx, db.collection)
	if err != nil {
		return apperror.Store("collection exists", err)
	}
	if exists {
		current, err := db.dimension(ctx)
		if err != nil {
			return err
		}
		if current != 0 && current != dimension {
			return apperror.Store("ensure collection", fmt.Errorf("collection %s has dimension %d, embeddings have %d", db.collection, current, dimension))
		}
		return nil
	}

	err = db.QObj.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: db.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return apperror.Store("create collection", err)
	}
	db.logger.Info("Created collection", "dimension", dimension)
	return nil
}

func (db *ClientHolder) Upsert(ctx context.Context, records []commonModels.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(r.RecordId),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(toPayload(r.Chunk)),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: db.collection,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return apperror.Store("upsert", fmt.Errorf("qdrant upsert failed: %w", err))
	}
	return nil
}

func (db *ClientHolder) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.SearchHit, error) {
	loggr := db.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	exists, err := db.QObj.CollectionExists(ctx, db.collection)
	if err != nil {
		return nil, apperror.Store("collection exists", err)
	}
	if !exists {
		return nil, apperror.Store("search", fmt.Errorf("collection %s does not exist", db.collection))
	}

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: db.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant", "error", err)
		return nil, apperror.Store("search", err)
	}

	hits := make([]commonModels.SearchHit, 0, len(result))
	for _, hit := range result {
		hits = append(hits, toHit(hit))
	}
	vectorDB.SortByScore(hits)
	loggr.Debug("Found matches", "hits", len(hits))
	return hits, nil
}

func (db *ClientHolder) Stats(ctx context.Context) (commonModels.CollectionStats, error) {
	stats := commonModels.CollectionStats{Name: db.collection}

	exists, err := db.QObj.CollectionExists(ctx, db.collection)
	if err != nil {
		return stats, apperror.Store("collection exists", err)
	}
	if !exists {
		return stats, nil
	}

	info, err := db.QObj.GetCollectionInfo(ctx, db.collection)
	if err != nil {
		return stats, apperror.Store("collection info", err)
	}
	stats.Exists = true
	stats.Entities = int64(info.GetPointsCount())
	stats.Dimension = int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	return stats, nil
}

func (db *ClientHolder) dimension(ctx context.Context) (int, error) {
	info, err := db.QObj.GetCollectionInfo(ctx, db.collection)
	if err != nil {
		return 0, apperror.Store("collection info", err)
	}
	return int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()), nil
}

func (db *ClientHolder) Drop(ctx context.Context) error {
	exists, err := db.QObj.CollectionExists(ctx, db.collection)
	if err != nil {
		return apperror.Store("collection exists", err)
	}
	if !exists {
		return nil
	}
	if err := db.QObj.DeleteCollection(ctx, db.collection); err != nil {
		return apperror.Store("drop collection", err)
	}
	db.logger.Info("Dropped collection")
	return nil
}

func (db *ClientHolder) Close() error {
	db.logger.Info("Shutting down Qdrant")
	if err := db.QObj.Close(); err != nil {
		db.logger.Error("could not close Qdrant", "error", err)
		return err
	}
	return nil
}

func toPayload(c commonModels.DocChunk) map[string]any {
	payload := map[string]any{vectorDB.FieldText: c.Text}
	for k, v := range vectorDB.Metadata(c) {
		payload[k] = v
	}
	return payload
}

func toHit(hit *qdrant.ScoredPoint) commonModels.SearchHit {
	md := make(map[string]string, len(hit.GetPayload()))
	for k, v := range hit.GetPayload() {
		md[k] = v.GetStringValue()
	}
	return commonModels.SearchHit{
		RecordId: hit.GetId().GetUuid(),
		Chunk:    vectorDB.ChunkFromMetadata(md[vectorDB.FieldText], md),
		Score:    hit.GetScore(),
	}
}
