package rag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/akolanti/AskStan/internal/adapter/utils"
	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/metrics"
	"github.com/akolanti/AskStan/internal/rag/embedding"
	"github.com/akolanti/AskStan/internal/rag/vectorDB"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

const (
	truncationSuffix  = "..."
	sourcePreviewSize = 100
)

type Source struct {
	DocumentIndex int     `json:"document_id"`
	Source        string  `json:"source"`
	Page          int     `json:"page"`
	ChunkIndex    int     `json:"chunk_id"`
	Score         float64 `json:"score"`
	Preview       string  `json:"content_preview"`
}

// Retrieval is the context assembled for one user input. Degraded is set when
// the embedding or the vector search failed and the context was left empty.
type Retrieval struct {
	Context        string   `json:"-"`
	Sources        []Source `json:"sources"`
	TotalDocuments int      `json:"total_documents"`
	AverageScore   float64  `json:"average_score"`
	Degraded       bool     `json:"degraded,omitempty"`
}

type RetrievalOptions struct {
	TopK              int
	ScoreThreshold    float64
	ContextMaxChars   int
	ChunkPreviewChars int
}

func RetrievalOptionsFromConfig(c config.RAGConfig) RetrievalOptions {
	return RetrievalOptions{
		TopK:              c.TopK,
		ScoreThreshold:    c.ScoreThreshold,
		ContextMaxChars:   c.ContextMaxChars,
		ChunkPreviewChars: c.ChunkPreviewChars,
	}
}

type Retriever struct {
	embedder embedding.Embedder
	store    vectorDB.Store
	opts     RetrievalOptions
	logger   *logger_i.Logger
}

func NewRetriever(embedder embedding.Embedder, store vectorDB.Store, opts RetrievalOptions) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.ContextMaxChars <= 0 {
		opts.ContextMaxChars = 4000
	}
	if opts.ChunkPreviewChars <= 0 {
		opts.ChunkPreviewChars = 400
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		opts:     opts,
		logger:   logger_i.NewLogger("retrieval"),
	}
}

// Retrieve embeds the query, searches the store and formats the hits above the
// score threshold. Embedding and store failures degrade to an empty Retrieval;
// the only error returned is the cancellation of ctx.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) (Retrieval, error) {
	log := r.logger.WithTrace(ctx, config.TRACE_ID_KEY)
	if k <= 0 {
		k = r.opts.TopK
	}

	stepCtx, cancel := context.WithTimeout(ctx, config.RetrievalTimeout)
	defer cancel()

	vector, err := r.executeEmbeddingStep(stepCtx, query)
	if err != nil {
		return r.degrade(ctx, log, "embedding", err)
	}

	hits, err := r.executeVectorSearchStep(stepCtx, vector, k)
	if err != nil {
		return r.degrade(ctx, log, "vector_search", err)
	}

	relevant := make([]commonModels.SearchHit, 0, len(hits))
	for _, h := range hits {
		if float64(h.Score) >= r.opts.ScoreThreshold {
			relevant = append(relevant, h)
		}
	}
	vectorDB.SortByScore(relevant)
	log.Debug("retrieved documents", "hits", len(hits), "relevant", len(relevant))

	return r.assemble(relevant), nil
}

func (r *Retriever) degrade(ctx context.Context, log *logger_i.Logger, step string, err error) (Retrieval, error) {
	if ctx.Err() != nil {
		return Retrieval{}, ctx.Err()
	}
	log.Warn("retrieval degraded, answering without documents", "step", step, "error", err)
	metrics.CaptureRetrievalDegraded(step)
	return Retrieval{Degraded: true}, nil
}

func (r *Retriever) assemble(hits []commonModels.SearchHit) Retrieval {
	if len(hits) == 0 {
		return Retrieval{}
	}

	parts := make([]string, len(hits))
	sources := make([]Source, len(hits))
	var total float64

	for i, h := range hits {
		content := utils.TruncateRunes(h.Chunk.Text, r.opts.ChunkPreviewChars, truncationSuffix)
		parts[i] = fmt.Sprintf("[Document %d (%s, page %d, score %.3f)]\n%s", i+1, h.Chunk.Doc.Name, h.Chunk.PageNum, h.Score, content)
		sources[i] = Source{
			DocumentIndex: i + 1,
			Source:        h.Chunk.Doc.Name,
			Page:          h.Chunk.PageNum,
			ChunkIndex:    h.Chunk.ChunkIndex,
			Score:         round4(float64(h.Score)),
			Preview:       utils.TruncateRunes(content, sourcePreviewSize, truncationSuffix),
		}
		total += float64(h.Score)
	}

	return Retrieval{
		Context:        utils.TruncateRunes(strings.Join(parts, "\n\n"), r.opts.ContextMaxChars, ""),
		Sources:        sources,
		TotalDocuments: len(hits),
		AverageScore:   round4(total / float64(len(hits))),
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
