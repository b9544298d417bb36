package commonModels

import "time"

type Document struct {
	Id                  string    `json:"source_doc_id"`
	Name                string    `json:"source"`
	Path                string    `json:"-"`
	LastIngestTimestamp time.Time `json:"ingested_at"`
	ContentType         DocType   `json:"file_type"`
}

// Span is a half-open [Start, End) range of character offsets.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int {
	return s.End - s.Start
}

type DocChunk struct {
	Doc         Document `json:"doc"`
	ChunkIndex  int      `json:"chunk_index"`
	TotalChunks int      `json:"total_chunks"`
	Text        string   `json:"content"`
	Span        Span     `json:"span"`
	PageNum     int      `json:"page"`
}

type VectorRecord struct {
	RecordId string
	Chunk    DocChunk
	Vector   []float32
}

type SearchHit struct {
	RecordId string
	Chunk    DocChunk
	Score    float32
}

type CollectionStats struct {
	Name      string `json:"name"`
	Exists    bool   `json:"exists"`
	Entities  int64  `json:"entities"`
	Dimension int    `json:"dimension"`
}

type DocType string

var PDF DocType = "pdf"
var DOCX DocType = "docx"
var TXT DocType = "txt"
var ERR DocType = "error"
