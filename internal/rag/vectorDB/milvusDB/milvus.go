package milvusDB

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/rag/vectorDB"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	fieldId          = "id"
	fieldEmbedding   = "embedding"
	fieldText        = "text"
	fieldSource      = "source"
	fieldFileType    = "file_type"
	fieldChunkIndex  = "chunk_index"
	fieldTotalChunks = "total_chunks"
	fieldPage        = "page"
	fieldSpanStart   = "span_start"
	fieldSpanEnd     = "span_end"
	fieldIngestedAt  = "ingested_at"
)

var outputFields = []string{fieldText, fieldSource, fieldFileType, fieldChunkIndex, fieldTotalChunks, fieldPage, fieldSpanStart, fieldSpanEnd, fieldIngestedAt}

var ErrCollectionMissing = errors.New("collection does not exist")

// milvusClient is the part of client.Client the store uses.
type milvusClient interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	DescribeCollection(ctx context.Context, collName string) (*entity.Collection, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector,
		vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	GetCollectionStatistics(ctx context.Context, collName string) (map[string]string, error)
	DropCollection(ctx context.Context, collName string, opts ...client.DropCollectionOption) error
	Close() error
}

type Store struct {
	client     milvusClient
	collection string
	logger     *logger_i.Logger

	mu     sync.Mutex
	loaded bool
}

var _ vectorDB.Store = (*Store)(nil)

// NewStore connects to the Milvus server at uri. An https scheme enables TLS.
func NewStore(ctx context.Context, uri string, token string, collection string) (*Store, error) {
	log := logger_i.NewLogger("milvus").With("collection", collection)

	address, useTLS := parseURI(uri)
	connectCtx, cancel := context.WithTimeout(ctx, config.VectorConnectionTimeout)
	defer cancel()

	c, err := client.NewClient(connectCtx, client.Config{
		Address:       address,
		APIKey:        token,
		EnableTLSAuth: useTLS,
	})
	if err != nil {
		log.Error("could not connect to Milvus", "address", address, "error", err)
		return nil, apperror.Store("connect", err)
	}
	log.Info("Connected to Milvus", "address", address)
	return newStore(c, collection), nil
}

func newStore(c milvusClient, collection string) *Store {
	return &Store{
		client:     c,
		collection: collection,
		logger:     logger_i.NewLogger("milvus").With("collection", collection),
	}
}

func parseURI(uri string) (string, bool) {
	switch {
	case strings.HasPrefix(uri, "https://"):
		return strings.TrimPrefix(uri, "https://"), true
	case strings.HasPrefix(uri, "http://"):
		return strings.TrimPrefix(uri, "http://"), false
	default:
		return uri, false
	}
}

func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return s.storeError("has collection", err)
	}

	if exists {
		current, err := s.dimension(ctx)
		if err != nil {
			return err
		}
		if current != 0 && current != dimension {
			return apperror.Store("ensure collection", fmt.Errorf("collection %s has dimension %d, embeddings have %d", s.collection, current, dimension))
		}
		return s.load(ctx)
	}

	schema := entity.NewSchema().
		WithName(s.collection).
		WithDescription("document chunks").
		WithField(entity.NewField().WithName(fieldId).WithDataType(entity.FieldTypeVarChar).WithIsPrimaryKey(true).WithMaxLength(64)).
		WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dimension))).
		WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(config.MilvusMaxTextLength)).
		WithField(entity.NewField().WithName(fieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(config.MilvusMaxSourceLength)).
		WithField(entity.NewField().WithName(fieldFileType).WithDataType(entity.FieldTypeVarChar).WithMaxLength(16)).
		WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldTotalChunks).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldPage).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldSpanStart).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldSpanEnd).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldIngestedAt).WithDataType(entity.FieldTypeInt64))

	if err := s.client.CreateCollection(ctx, schema, config.MilvusShardNumber); err != nil {
		return s.storeError("create collection", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, config.MilvusHNSWM, config.MilvusHNSWEfConstruct)
	if err != nil {
		return apperror.Store("create index", err)
	}
	if err := s.client.CreateIndex(ctx, s.collection, fieldEmbedding, idx, false); err != nil {
		return s.storeError("create index", err)
	}
	s.logger.Info("Created collection", "dimension", dimension)
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return s.storeError("load collection", err)
	}
	s.loaded = true
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []commonModels.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	texts := make([]string, n)
	sources := make([]string, n)
	fileTypes := make([]string, n)
	chunkIndexes := make([]int64, n)
	totals := make([]int64, n)
	pages := make([]int64, n)
	starts := make([]int64, n)
	ends := make([]int64, n)
	ingestedAt := make([]int64, n)

	for i, r := range records {
		ids[i] = r.RecordId
		vectors[i] = r.Vector
		texts[i] = truncateBytes(r.Chunk.Text, config.MilvusMaxTextLength)
		sources[i] = truncateBytes(r.Chunk.Doc.Name, config.MilvusMaxSourceLength)
		fileTypes[i] = string(r.Chunk.Doc.ContentType)
		chunkIndexes[i] = int64(r.Chunk.ChunkIndex)
		totals[i] = int64(r.Chunk.TotalChunks)
		pages[i] = int64(r.Chunk.PageNum)
		starts[i] = int64(r.Chunk.Span.Start)
		ends[i] = int64(r.Chunk.Span.End)
		ingestedAt[i] = r.Chunk.Doc.LastIngestTimestamp.Unix()
	}

	_, err := s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(fieldId, ids),
		entity.NewColumnFloatVector(fieldEmbedding, len(vectors[0]), vectors),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnVarChar(fieldFileType, fileTypes),
		entity.NewColumnInt64(fieldChunkIndex, chunkIndexes),
		entity.NewColumnInt64(fieldTotalChunks, totals),
		entity.NewColumnInt64(fieldPage, pages),
		entity.NewColumnInt64(fieldSpanStart, starts),
		entity.NewColumnInt64(fieldSpanEnd, ends),
		entity.NewColumnInt64(fieldIngestedAt, ingestedAt),
	)
	if err != nil {
		return s.storeError("upsert", err)
	}
	if err := s.client.Flush(ctx, s.collection, false); err != nil {
		return s.storeError("flush", err)
	}
	return nil
}

func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]commonModels.SearchHit, error) {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY)

	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return nil, s.storeError("has collection", err)
	}
	if !exists {
		return nil, apperror.Store("search", fmt.Errorf("%s: %w", s.collection, ErrCollectionMissing))
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}

	sp, err := entity.NewIndexHNSWSearchParam(max(config.MilvusSearchEf, k))
	if err != nil {
		return nil, apperror.Store("search", err)
	}

	results, err := s.client.Search(ctx, s.collection, nil, "", outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, fieldEmbedding, entity.COSINE, k, sp)
	if err != nil {
		return nil, s.storeError("search", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	hits, err := toHits(results[0])
	if err != nil {
		return nil, apperror.Store("decode search result", err)
	}
	vectorDB.SortByScore(hits)
	log.Debug("search complete", "hits", len(hits))
	return hits, nil
}

func toHits(res client.SearchResult) ([]commonModels.SearchHit, error) {
	if res.Err != nil {
		return nil, res.Err
	}

	hits := make([]commonModels.SearchHit, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		id, err := res.IDs.GetAsString(i)
		if err != nil {
			return nil, err
		}
		text, err := stringAt(res.Fields, fieldText, i)
		if err != nil {
			return nil, err
		}
		source, _ := stringAt(res.Fields, fieldSource, i)
		fileType, _ := stringAt(res.Fields, fieldFileType, i)

		md := map[string]string{
			vectorDB.FieldSource:      source,
			vectorDB.FieldFileType:    fileType,
			vectorDB.FieldChunkIndex:  intAt(res.Fields, fieldChunkIndex, i),
			vectorDB.FieldTotalChunks: intAt(res.Fields, fieldTotalChunks, i),
			vectorDB.FieldPage:        intAt(res.Fields, fieldPage, i),
			vectorDB.FieldSpanStart:   intAt(res.Fields, fieldSpanStart, i),
			vectorDB.FieldSpanEnd:     intAt(res.Fields, fieldSpanEnd, i),
			vectorDB.FieldIngestedAt:  intAt(res.Fields, fieldIngestedAt, i),
		}

		hits = append(hits, commonModels.SearchHit{
			RecordId: id,
			Chunk:    vectorDB.ChunkFromMetadata(text, md),
			Score:    res.Scores[i],
		})
	}
	return hits, nil
}

func stringAt(fields client.ResultSet, name string, i int) (string, error) {
	col, ok := fields.GetColumn(name).(*entity.ColumnVarChar)
	if !ok {
		return "", fmt.Errorf("field %s missing from search result", name)
	}
	return col.ValueByIdx(i)
}

func intAt(fields client.ResultSet, name string, i int) string {
	col, ok := fields.GetColumn(name).(*entity.ColumnInt64)
	if !ok {
		return ""
	}
	v, err := col.ValueByIdx(i)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

func (s *Store) Stats(ctx context.Context) (commonModels.CollectionStats, error) {
	stats := commonModels.CollectionStats{Name: s.collection}

	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return stats, s.storeError("has collection", err)
	}
	if !exists {
		return stats, nil
	}
	stats.Exists = true

	raw, err := s.client.GetCollectionStatistics(ctx, s.collection)
	if err != nil {
		return stats, s.storeError("collection statistics", err)
	}
	stats.Entities, _ = strconv.ParseInt(raw["row_count"], 10, 64)

	stats.Dimension, err = s.dimension(ctx)
	return stats, err
}

func (s *Store) dimension(ctx context.Context) (int, error) {
	coll, err := s.client.DescribeCollection(ctx, s.collection)
	if err != nil {
		return 0, s.storeError("describe collection", err)
	}
	if coll == nil || coll.Schema == nil {
		return 0, nil
	}
	for _, f := range coll.Schema.Fields {
		if f.Name == fieldEmbedding {
			dim, _ := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
			return dim, nil
		}
	}
	return 0, nil
}

func (s *Store) Drop(ctx context.Context) error {
	exists, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return s.storeError("has collection", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DropCollection(ctx, s.collection); err != nil {
		return s.storeError("drop collection", err)
	}

	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
	s.logger.Info("Dropped collection")
	return nil
}

func (s *Store) Close() error {
	s.logger.Info("Closing Milvus connection")
	return s.client.Close()
}

func (s *Store) storeError(op string, err error) error {
	if isConnectionLoss(err) {
		s.logger.Warn("Milvus unreachable", "op", op, "error", err)
		s.mu.Lock()
		s.loaded = false
		s.mu.Unlock()
		return apperror.Store(op+": connection lost", err)
	}
	return apperror.Store(op, err)
}

func isConnectionLoss(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded:
			return true
		}
	}
	return false
}

// truncateBytes keeps s within limit bytes without splitting a character.
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
