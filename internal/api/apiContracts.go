package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

// SSE event names on POST /api/sessions/{id}/messages
const (
	EventSources = "sources"
	EventToken   = "token"
	EventError   = "error"
	EventDone    = "done"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

type IngestResult struct {
	Document       string  `json:"document" example:"install-guide.pdf"`
	TotalChunks    int     `json:"total_chunks" example:"42"`
	TotalChars     int     `json:"total_chars"`
	AvgChunkSize   float64 `json:"avg_chunk_size"`
	MinChunkSize   int     `json:"min_chunk_size"`
	MaxChunkSize   int     `json:"max_chunk_size"`
	Pages          int     `json:"pages"`
	EmbeddingDim   int     `json:"embedding_dimension"`
	UpsertedChunks int     `json:"upserted_chunks"`
}

type Result struct {
	Status       string        `json:"status"`
	CurrentStep  string        `json:"current_step"`
	IngestResult *IngestResult `json:"ingest_result,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type ErrorResponse struct {
	Id    string           `json:"id,omitempty"`
	Error JobOutgoingError `json:"error"`
}

// chat -----------------------

type TurnResponse struct {
	Role      string    `json:"role" example:"user"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionResponse struct {
	SessionId  string         `json:"session_id" example:"3f1c2b9e-8a8f-4f7e-9f61-2a5f0d3c1b7a"`
	TurnsLimit int            `json:"turns_limit" example:"5"`
	TurnCount  int            `json:"turn_count" example:"0"`
	Locked     bool           `json:"locked"`
	State      string         `json:"state" example:"ACTIVE"`
	CreatedAt  time.Time      `json:"created_at"`
	History    []TurnResponse `json:"history,omitempty"`
}

type LockedResponse struct {
	Locked  bool   `json:"locked" example:"true"`
	QRURL   string `json:"qr_url" example:"/api/sessions/3f1c2b9e/qr"`
	Message string `json:"message"`
}

type SourceResponse struct {
	DocumentIndex  int     `json:"document_id"`
	Source         string  `json:"source"`
	Page           int     `json:"page"`
	ChunkIndex     int     `json:"chunk_id"`
	Score          float64 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

type SourcesEvent struct {
	Sources        []SourceResponse `json:"sources"`
	TotalDocuments int              `json:"total_documents"`
	AverageScore   float64          `json:"average_score"`
	Degraded       bool             `json:"degraded"`
}

type TokenEvent struct {
	Text string `json:"text"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

type DoneEvent struct {
	TurnCount  int    `json:"turn_count"`
	TurnsLimit int    `json:"turns_limit"`
	Locked     bool   `json:"locked"`
	QRURL      string `json:"qr_url,omitempty"`
}

// requests---------------------

type MessageRequest struct {
	Message string `json:"message" validate:"required"`
}

type IngestDocumentRequest struct {
	DocumentName string `json:"document_name" validate:"required"`
}
