package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/AskStan/internal/adapter/utils"
	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
	"github.com/akolanti/AskStan/internal/rag/embedding"
	"github.com/akolanti/AskStan/internal/rag/vectorDB"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	// Progress is called after each upserted batch.
	Progress func(done, total int)
	// OnStep reports the pipeline stage, used by ingestion jobs.
	OnStep func(step jobModel.InternalStatus)
}

type Result struct {
	Document commonModels.Document
	Chunks   []commonModels.DocChunk
	Stats    jobModel.IngestStats
}

type Pipeline struct {
	store    vectorDB.Store
	embedder embedding.Embedder
	opts     Options
	logger   *logger_i.Logger
}

func NewPipeline(store vectorDB.Store, embedder embedding.Embedder, opts Options) *Pipeline {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = DefaultChunkSize
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		opts:     opts,
		logger:   logger_i.NewLogger("ingest"),
	}
}

// ExtractDocument reads a supported file and returns its pages. Unknown
// extensions, unreadable files and files without text fail with IngestError.
func ExtractDocument(path string, displayName string) (commonModels.Document, []rawPage, error) {
	log := logger_i.NewLogger("extract")
	if displayName == "" {
		displayName = filepath.Base(path)
	}

	docType := getDocType(path)
	if docType == commonModels.ERR {
		return commonModels.Document{}, nil, apperror.Ingest("extract", fmt.Errorf("unsupported file type %q", filepath.Ext(path)))
	}
	if _, err := os.Stat(path); err != nil {
		return commonModels.Document{}, nil, apperror.Ingest("extract", err)
	}

	doc := commonModels.Document{
		Id:                  utils.GetStableUUID(displayName),
		Name:                displayName,
		Path:                path,
		LastIngestTimestamp: time.Now().UTC(),
		ContentType:         docType,
	}

	pages, err := extractText(path, docType, log)
	if err != nil {
		return doc, nil, apperror.Ingest("extract", err)
	}
	if len(pages) == 0 {
		return doc, nil, apperror.Ingest("extract", errors.New("no extractable text"))
	}
	return doc, pages, nil
}

// Chunk extracts and splits a file without touching the embedder or the store.
func (p *Pipeline) Chunk(path string, displayName string) (commonModels.Document, []commonModels.DocChunk, int, error) {
	doc, pages, err := ExtractDocument(path, displayName)
	if err != nil {
		return doc, nil, 0, err
	}
	chunks, err := PrepareChunks(doc, pages, p.opts.ChunkSize, p.opts.ChunkOverlap)
	return doc, chunks, len(pages), err
}

// IngestFile runs extraction, chunking, embedding and upsert for one file.
// Any failure aborts the run for that file.
func (p *Pipeline) IngestFile(ctx context.Context, path string, displayName string) (Result, error) {
	log := p.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("path", path)

	p.step(jobModel.IngestExtract)
	doc, pages, err := ExtractDocument(path, displayName)
	if err != nil {
		log.Error("extraction failed", "error", err)
		return Result{Document: doc}, err
	}
	log.Debug("extracted document", "pages", len(pages), "type", doc.ContentType)

	p.step(jobModel.IngestChunk)
	chunks, err := PrepareChunks(doc, pages, p.opts.ChunkSize, p.opts.ChunkOverlap)
	if err != nil {
		log.Error("chunking failed", "error", err)
		return Result{Document: doc}, err
	}
	stats := ComputeStats(chunks)
	stats.Pages = len(pages)
	log.Info("chunked document", "chunks", stats.TotalChunks, "avgChunkSize", stats.AvgChunkSize)

	p.step(jobModel.IngestEmbed)
	dimension, err := BatchIngest(ctx, chunks, p.store, p.embedder, p.opts.BatchSize, p.opts.Progress)
	if err != nil {
		log.Error("batch ingest failed", "error", err)
		return Result{Document: doc, Chunks: chunks, Stats: stats}, err
	}
	stats.EmbeddingDim = dimension
	stats.UpsertedChunks = len(chunks)

	p.step(jobModel.Complete)
	log.Info("document ingested", "source", doc.Name, "chunks", len(chunks), "dimension", dimension)
	return Result{Document: doc, Chunks: chunks, Stats: stats}, nil
}

func (p *Pipeline) step(s jobModel.InternalStatus) {
	if p.opts.OnStep != nil {
		p.opts.OnStep(s)
	}
}

// ProcessDocumentIngestion runs an uploaded-file job and removes the upload afterwards.
func ProcessDocumentIngestion(ctx context.Context, job jobModel.Job, pipeline *Pipeline) jobModel.Job {
	log := logger_i.NewLogger("document_ingestion").With("traceId", job.TraceId, "jobId", job.Id)
	log.Debug("Processing document", "filename", job.JobPayload.IngestFileName, "path", job.JobPayload.IngestURL)

	job.CurrentStep = jobModel.IngestProcessing
	runner := *pipeline
	runner.opts.OnStep = func(s jobModel.InternalStatus) { job.CurrentStep = s }

	result, err := runner.IngestFile(ctx, job.JobPayload.IngestURL, job.JobPayload.IngestFileName)
	if rmErr := os.Remove(job.JobPayload.IngestURL); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		log.Error("Error removing uploaded file", "error", rmErr)
	}
	if result.Stats.TotalChunks > 0 {
		stats := result.Stats
		job.JobPayload.Stats = &stats
	}

	if err != nil {
		job.Status = jobModel.JobStatusError
		job.CurrentStep = jobModel.Error
		job.Error = jobModel.JobError{
			Code:    http.StatusUnprocessableEntity,
			Message: err.Error(),
			Retry:   apperror.Is(err, apperror.ProviderError) || apperror.Is(err, apperror.StoreError),
		}
		return job
	}

	job.Status = jobModel.JobStatusComplete
	job.CurrentStep = jobModel.Complete
	return job
}

// IngestDocument lets the worker pool run uploaded-file jobs through the pipeline.
func (p *Pipeline) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	return ProcessDocumentIngestion(ctx, job, p)
}
