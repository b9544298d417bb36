package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/AskStan/internal/adapter/utils"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
	"github.com/akolanti/AskStan/internal/rag/embedding"
	"github.com/akolanti/AskStan/internal/rag/vectorDB"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultBatchSize    = 50

	pageSeparator = "\n\n"
)

// SplitText cuts a text of n characters into fixed windows of size characters,
// each starting size-overlap after the previous one. The last window ends at n.
func SplitText(text string, size int, overlap int) ([]commonModels.Span, error) {
	if size <= 0 {
		return nil, apperror.Ingest("split", fmt.Errorf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return nil, apperror.Ingest("split", fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap))
	}

	n := utf8.RuneCountInString(text)
	if n == 0 {
		return nil, nil
	}

	step := size - overlap
	spans := make([]commonModels.Span, 0, n/step+1)
	for start := 0; ; start += step {
		end := min(start+size, n)
		spans = append(spans, commonModels.Span{Start: start, End: end})
		if end == n {
			break
		}
	}
	return spans, nil
}

// IsSupported reports whether the file extension has an extractor.
func IsSupported(docPath string) bool {
	return getDocType(docPath) != commonModels.ERR
}

func getDocType(docPath string) commonModels.DocType {
	switch strings.ToLower(filepath.Ext(docPath)) {
	case ".pdf":
		return commonModels.PDF
	case ".docx", ".odt", ".rtf":
		return commonModels.DOCX
	case ".txt", ".md":
		return commonModels.TXT
	default:
		return commonModels.ERR
	}
}

func extractText(path string, contentType commonModels.DocType, log *logger_i.Logger) ([]rawPage, error) {
	switch contentType {
	case commonModels.PDF:
		return extractPDF(path, log)
	case commonModels.DOCX, commonModels.TXT:
		return extractDocxTxtRtf(path)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
}

// PrepareChunks joins the pages of a document and cuts the result into chunks.
// Each chunk records the page its first character belongs to.
func PrepareChunks(doc commonModels.Document, pages []rawPage, size int, overlap int) ([]commonModels.DocChunk, error) {
	var sb strings.Builder
	var pageStarts []int
	var pageNumbers []int
	offset := 0

	for _, page := range pages {
		content := strings.TrimSpace(page.Content)
		if content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(pageSeparator)
			offset += utf8.RuneCountInString(pageSeparator)
		}
		pageStarts = append(pageStarts, offset)
		pageNumbers = append(pageNumbers, page.Number)
		sb.WriteString(content)
		offset += utf8.RuneCountInString(content)
	}

	if sb.Len() == 0 {
		return nil, apperror.Ingest("prepare chunks", fmt.Errorf("%s contains no extractable text", doc.Name))
	}

	runes := []rune(sb.String())
	spans, err := SplitText(sb.String(), size, overlap)
	if err != nil {
		return nil, err
	}

	chunks := make([]commonModels.DocChunk, len(spans))
	for i, span := range spans {
		// last page whose start is at or before the chunk start
		p := sort.Search(len(pageStarts), func(j int) bool { return pageStarts[j] > span.Start }) - 1
		chunks[i] = commonModels.DocChunk{
			Doc:         doc,
			ChunkIndex:  i,
			TotalChunks: len(spans),
			Text:        string(runes[span.Start:span.End]),
			Span:        span,
			PageNum:     pageNumbers[max(p, 0)],
		}
	}
	return chunks, nil
}

// RecordId is stable for a given source and chunk index, so re-ingesting a file
// overwrites its previous records.
func RecordId(chunk commonModels.DocChunk) string {
	return utils.GetStableUUID(chunk.Doc.Name, strconv.Itoa(chunk.ChunkIndex))
}

// BatchIngest embeds and upserts chunks batch by batch. The collection is
// created from the dimension of the first embedded batch.
func BatchIngest(ctx context.Context, chunks []commonModels.DocChunk, store vectorDB.Store, embedder embedding.Embedder, batchSize int, progress func(done, total int)) (int, error) {
	log := logger_i.NewLogger("batch_ingest")
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	dimension := 0
	for i := 0; i < len(chunks); i += batchSize {
		if err := ctx.Err(); err != nil {
			return dimension, apperror.Ingest("batch ingest", err)
		}
		end := min(i+batchSize, len(chunks))
		currentBatch := chunks[i:end]

		texts := make([]string, len(currentBatch))
		for j, c := range currentBatch {
			texts[j] = c.Text
		}

		log.Debug("embedding batch", "from", i, "to", end, "total", len(chunks))
		vectors, err := embedder.BatchEmbedding(ctx, texts)
		if err != nil {
			return dimension, apperror.Ingest("embed batch", err)
		}
		if len(vectors) != len(currentBatch) {
			return dimension, apperror.Ingest("embed batch", fmt.Errorf("mismatch: got %d chunks but %d vectors", len(currentBatch), len(vectors)))
		}

		if dimension == 0 {
			dimension = len(vectors[0])
			if dimension == 0 {
				return 0, apperror.Ingest("embed batch", errors.New("embedding model returned empty vectors"))
			}
			if err := store.EnsureCollection(ctx, dimension); err != nil {
				return dimension, apperror.Ingest("ensure collection", err)
			}
		}

		records := make([]commonModels.VectorRecord, len(currentBatch))
		for j, c := range currentBatch {
			records[j] = commonModels.VectorRecord{
				RecordId: RecordId(c),
				Chunk:    c,
				Vector:   vectors[j],
			}
		}

		if err := store.Upsert(ctx, records); err != nil {
			return dimension, apperror.Ingest("upsert batch", err)
		}
		if progress != nil {
			progress(end, len(chunks))
		}
	}
	return dimension, nil
}

func ComputeStats(chunks []commonModels.DocChunk) jobModel.IngestStats {
	stats := jobModel.IngestStats{TotalChunks: len(chunks)}
	if len(chunks) == 0 {
		return stats
	}

	stats.MinChunkSize = math.MaxInt
	for _, c := range chunks {
		size := c.Span.Len()
		stats.TotalChars += size
		stats.MinChunkSize = min(stats.MinChunkSize, size)
		stats.MaxChunkSize = max(stats.MaxChunkSize, size)
	}
	stats.AvgChunkSize = float64(stats.TotalChars) / float64(len(chunks))
	return stats
}
