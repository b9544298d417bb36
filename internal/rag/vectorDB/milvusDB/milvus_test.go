package milvusDB

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"testing"

	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeRow struct {
	id     string
	vector []float32
	text   string
	source string
	ints   map[string]int64
}

// fakeMilvus keeps one collection in memory and scores with cosine similarity.
type fakeMilvus struct {
	schema    *entity.Schema
	rows      map[string]fakeRow
	loadCalls int
	searchErr error
	OnCreate  func(schema *entity.Schema)
}

func newFake() *fakeMilvus {
	return &fakeMilvus{rows: map[string]fakeRow{}}
}

func (f *fakeMilvus) HasCollection(ctx context.Context, collName string) (bool, error) {
	return f.schema != nil, nil
}

func (f *fakeMilvus) DescribeCollection(ctx context.Context, collName string) (*entity.Collection, error) {
	return &entity.Collection{Name: collName, Schema: f.schema}, nil
}

func (f *fakeMilvus) CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error {
	f.schema = schema
	if f.OnCreate != nil {
		f.OnCreate(schema)
	}
	return nil
}

func (f *fakeMilvus) CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	return nil
}

func (f *fakeMilvus) LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error {
	f.loadCalls++
	return nil
}

func (f *fakeMilvus) Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error) {
	cols := map[string]entity.Column{}
	for _, c := range columns {
		cols[c.Name()] = c
	}
	ids := cols[fieldId].(*entity.ColumnVarChar)
	vectors := cols[fieldEmbedding].(*entity.ColumnFloatVector).Data()
	for i := 0; i < ids.Len(); i++ {
		id, _ := ids.ValueByIdx(i)
		text, _ := cols[fieldText].(*entity.ColumnVarChar).ValueByIdx(i)
		source, _ := cols[fieldSource].(*entity.ColumnVarChar).ValueByIdx(i)
		ints := map[string]int64{}
		for _, name := range []string{fieldChunkIndex, fieldTotalChunks, fieldPage, fieldSpanStart, fieldSpanEnd, fieldIngestedAt} {
			ints[name], _ = cols[name].(*entity.ColumnInt64).ValueByIdx(i)
		}
		f.rows[id] = fakeRow{id: id, vector: vectors[i], text: text, source: source, ints: ints}
	}
	return ids, nil
}

func (f *fakeMilvus) Flush(ctx context.Context, collName string, async bool, opts ...client.FlushOption) error {
	return nil
}

func (f *fakeMilvus) Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector,
	vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	query := []float32(vectors[0].(entity.FloatVector))

	type scored struct {
		row   fakeRow
		score float32
	}
	var all []scored
	for _, r := range f.rows {
		all = append(all, scored{r, cosine(query, r.vector)})
	}
	// ascending on purpose: the store must sort
	sort.Slice(all, func(i, j int) bool { return all[i].score < all[j].score })
	if len(all) > topK {
		all = all[len(all)-topK:]
	}

	var ids, texts, sources, fileTypes []string
	var scores []float32
	ints := map[string][]int64{}
	for _, s := range all {
		ids = append(ids, s.row.id)
		texts = append(texts, s.row.text)
		sources = append(sources, s.row.source)
		fileTypes = append(fileTypes, "pdf")
		scores = append(scores, s.score)
		for k, v := range s.row.ints {
			ints[k] = append(ints[k], v)
		}
	}

	fields := client.ResultSet{
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldSource, sources),
		entity.NewColumnVarChar(fieldFileType, fileTypes),
	}
	for _, name := range []string{fieldChunkIndex, fieldTotalChunks, fieldPage, fieldSpanStart, fieldSpanEnd, fieldIngestedAt} {
		fields = append(fields, entity.NewColumnInt64(name, ints[name]))
	}

	return []client.SearchResult{{
		ResultCount: len(all),
		IDs:         entity.NewColumnVarChar(fieldId, ids),
		Fields:      fields,
		Scores:      scores,
	}}, nil
}

func (f *fakeMilvus) GetCollectionStatistics(ctx context.Context, collName string) (map[string]string, error) {
	return map[string]string{"row_count": strconv.Itoa(len(f.rows))}, nil
}

func (f *fakeMilvus) DropCollection(ctx context.Context, collName string, opts ...client.DropCollectionOption) error {
	f.schema = nil
	f.rows = map[string]fakeRow{}
	return nil
}

func (f *fakeMilvus) Close() error { return nil }

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i] * b[i])
		na += float64(a[i] * a[i])
		nb += float64(b[i] * b[i])
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func record(id string, index int, vector []float32) commonModels.VectorRecord {
	return commonModels.VectorRecord{
		RecordId: id,
		Vector:   vector,
		Chunk: commonModels.DocChunk{
			Doc:         commonModels.Document{Name: "manual.pdf", ContentType: commonModels.PDF},
			ChunkIndex:  index,
			TotalChunks: 3,
			Text:        "chunk " + id,
			Span:        commonModels.Span{Start: index * 800, End: index*800 + 1000},
			PageNum:     index + 1,
		},
	}
}

func TestEnsureCollection(t *testing.T) {
	fake := newFake()
	var dim string
	fake.OnCreate = func(schema *entity.Schema) {
		for _, f := range schema.Fields {
			if f.Name == fieldEmbedding {
				dim = f.TypeParams[entity.TypeParamDim]
			}
		}
	}
	store := newStore(fake, "docs")

	if err := store.EnsureCollection(context.Background(), 3); err != nil {
		t.Fatalf("EnsureCollection failed: %v", err)
	}
	if dim != "3" {
		t.Errorf("created with dimension %q; want 3", dim)
	}
	if err := store.EnsureCollection(context.Background(), 3); err != nil {
		t.Errorf("EnsureCollection should be idempotent: %v", err)
	}
	if fake.loadCalls != 1 {
		t.Errorf("collection loaded %d times; want 1", fake.loadCalls)
	}

	err := store.EnsureCollection(context.Background(), 768)
	if !apperror.Is(err, apperror.StoreError) {
		t.Errorf("dimension change should be a StoreError, got %v", err)
	}
}

func TestSimilaritySearch_SortedWithMetadata(t *testing.T) {
	store := newStore(newFake(), "docs")
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, 2); err != nil {
		t.Fatal(err)
	}
	err := store.Upsert(ctx, []commonModels.VectorRecord{
		record("a", 0, []float32{1, 0}),
		record("b", 1, []float32{0.7, 0.7}),
		record("c", 2, []float32{0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	hits, err := store.SimilaritySearch(ctx, []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].RecordId != "a" || hits[1].RecordId != "b" || hits[0].Score < hits[1].Score {
		t.Errorf("hits not in descending order: %+v", hits)
	}
	c := hits[1].Chunk
	if c.Doc.Name != "manual.pdf" || c.PageNum != 2 || c.ChunkIndex != 1 || c.Span.Start != 800 || c.Text != "chunk b" {
		t.Errorf("chunk metadata not restored: %+v", c)
	}
}

func TestSimilaritySearch_Failures(t *testing.T) {
	ctx := context.Background()

	missing := newStore(newFake(), "docs")
	_, err := missing.SimilaritySearch(ctx, []float32{1, 0}, 5)
	if !apperror.Is(err, apperror.StoreError) || !errors.Is(err, ErrCollectionMissing) {
		t.Errorf("missing collection: expected StoreError, got %v", err)
	}

	fake := newFake()
	down := newStore(fake, "docs")
	if err := down.EnsureCollection(ctx, 2); err != nil {
		t.Fatal(err)
	}
	fake.searchErr = status.Error(codes.Unavailable, "connection refused")
	_, err = down.SimilaritySearch(ctx, []float32{1, 0}, 5)
	if !apperror.Is(err, apperror.StoreError) {
		t.Errorf("unreachable server: expected StoreError, got %v", err)
	}
	if down.loaded {
		t.Error("connection loss should force a reload")
	}
}

func TestStatsAndDrop(t *testing.T) {
	ctx := context.Background()
	store := newStore(newFake(), "docs")

	stats, err := store.Stats(ctx)
	if err != nil || stats.Exists {
		t.Fatalf("stats before creation = %+v, %v", stats, err)
	}

	store.EnsureCollection(ctx, 2)
	store.Upsert(ctx, []commonModels.VectorRecord{record("a", 0, []float32{1, 0}), record("b", 1, []float32{0, 1})})
	// same id again replaces the record
	store.Upsert(ctx, []commonModels.VectorRecord{record("a", 0, []float32{1, 0})})

	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !stats.Exists || stats.Entities != 2 || stats.Dimension != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	if err := store.Drop(ctx); err != nil {
		t.Fatal(err)
	}
	stats, _ = store.Stats(ctx)
	if stats.Exists {
		t.Error("collection should be gone after Drop")
	}
}

func TestHelpers(t *testing.T) {
	tests := []struct {
		uri     string
		address string
		tls     bool
	}{
		{"http://localhost:19530", "localhost:19530", false},
		{"https://in01.zillizcloud.com:443", "in01.zillizcloud.com:443", true},
		{"milvus:19530", "milvus:19530", false},
	}
	for _, tt := range tests {
		address, tls := parseURI(tt.uri)
		if address != tt.address || tls != tt.tls {
			t.Errorf("parseURI(%s) = %s, %v", tt.uri, address, tls)
		}
	}

	if got := truncateBytes("héllo", 2); got != "h" {
		t.Errorf("truncateBytes split a character: %q", got)
	}
	if !isConnectionLoss(status.Error(codes.DeadlineExceeded, "slow")) || isConnectionLoss(errors.New("bad schema")) {
		t.Error("isConnectionLoss misclassified")
	}
}
