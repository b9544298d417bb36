package jobModel

import (
	"context"
	"time"
)

type JobStatus string
type InternalStatus string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	IngestInit       InternalStatus = "IngestInit"
	IngestExtract    InternalStatus = "Extract"
	IngestChunk      InternalStatus = "Chunk"
	IngestEmbed      InternalStatus = "EmbedAndUpsert"
	IngestProcessing InternalStatus = "IngestProcessing"
	Error            InternalStatus = "Error"

	Complete InternalStatus = "Complete"
)

// Job tracks one on-demand document ingestion.
type Job struct {
	Id          string         `json:"id"`
	TraceId     string         `json:"trace_id"`
	JobPayload  JobPayload     `json:"job_payload"`
	Error       JobError       `json:"error,omitempty"`
	CreatedTime time.Time      `json:"created_time"`
	EndTime     time.Time      `json:"end_time,omitempty"`
	Status      JobStatus      `json:"status"`
	CurrentStep InternalStatus `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobPayload struct {
	IngestFileName string       `json:"ingest_file_name,omitempty"`
	IngestURL      string       `json:"ingest_url,omitempty"`
	Stats          *IngestStats `json:"stats,omitempty"`
}

type IngestStats struct {
	TotalChunks    int     `json:"total_chunks"`
	TotalChars     int     `json:"total_chars"`
	AvgChunkSize   float64 `json:"avg_chunk_size"`
	MinChunkSize   int     `json:"min_chunk_size"`
	MaxChunkSize   int     `json:"max_chunk_size"`
	Pages          int     `json:"pages"`
	EmbeddingDim   int     `json:"embedding_dimension"`
	UpsertedChunks int     `json:"upserted_chunks"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
