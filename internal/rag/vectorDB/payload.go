package vectorDB

import (
	"strconv"
	"time"

	"github.com/akolanti/AskStan/internal/domain/commonModels"
)

// Metadata keys shared by every backend.
const (
	FieldText        = "text"
	FieldSource      = "source"
	FieldDocId       = "source_doc_id"
	FieldFileType    = "file_type"
	FieldChunkIndex  = "chunk_id"
	FieldTotalChunks = "total_chunks"
	FieldPage        = "page"
	FieldSpanStart   = "span_start"
	FieldSpanEnd     = "span_end"
	FieldIngestedAt  = "ingested_at"
)

// Metadata flattens a chunk (without its text) into string fields.
func Metadata(c commonModels.DocChunk) map[string]string {
	return map[string]string{
		FieldSource:      c.Doc.Name,
		FieldDocId:       c.Doc.Id,
		FieldFileType:    string(c.Doc.ContentType),
		FieldChunkIndex:  strconv.Itoa(c.ChunkIndex),
		FieldTotalChunks: strconv.Itoa(c.TotalChunks),
		FieldPage:        strconv.Itoa(c.PageNum),
		FieldSpanStart:   strconv.Itoa(c.Span.Start),
		FieldSpanEnd:     strconv.Itoa(c.Span.End),
		FieldIngestedAt:  strconv.FormatInt(c.Doc.LastIngestTimestamp.Unix(), 10),
	}
}

// ChunkFromMetadata rebuilds a chunk from stored fields. Missing or malformed
// numeric fields decode as zero.
func ChunkFromMetadata(text string, md map[string]string) commonModels.DocChunk {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(md[key])
		return n
	}
	var ingestedAt time.Time
	if sec, err := strconv.ParseInt(md[FieldIngestedAt], 10, 64); err == nil && sec > 0 {
		ingestedAt = time.Unix(sec, 0).UTC()
	}

	return commonModels.DocChunk{
		Doc: commonModels.Document{
			Id:                  md[FieldDocId],
			Name:                md[FieldSource],
			ContentType:         commonModels.DocType(md[FieldFileType]),
			LastIngestTimestamp: ingestedAt,
		},
		ChunkIndex:  atoi(FieldChunkIndex),
		TotalChunks: atoi(FieldTotalChunks),
		Text:        text,
		Span:        commonModels.Span{Start: atoi(FieldSpanStart), End: atoi(FieldSpanEnd)},
		PageNum:     atoi(FieldPage),
	}
}
