package worker

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
	"github.com/akolanti/AskStan/internal/metrics"
)

func executeJob(job jobModel.Job) {
	start := time.Now()
	defer func() {
		metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	}()

	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, jobTimeout)
	defer cancel()
	log := logger.With("traceId", job.TraceId, "jobId", job.Id)
	log.Debug("Processing job")

	job.CurrentStep = jobModel.IngestProcessing
	saveJobState(ctx, job, jobModel.JobStatusRunning)

	job = runIngestion(ctx, job)
	job.EndTime = time.Now()

	if job.Status == jobModel.JobStatusError {
		log.Warn("Ingestion job failed", "error", job.Error.Message)
		saveJobState(context.WithoutCancel(ctx), job, jobModel.JobStatusError)
		return
	}
	log.Info("Ingestion job complete", "duration", time.Since(start))
	saveJobState(context.WithoutCancel(ctx), job, jobModel.JobStatusComplete)
}

// runIngestion keeps a panicking extractor from taking the worker down.
func runIngestion(ctx context.Context, job jobModel.Job) (result jobModel.Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Ingestion panicked", "jobId", job.Id, "panic", r)
			result = job
			result.Status = jobModel.JobStatusError
			result.CurrentStep = jobModel.Error
			result.Error = jobModel.JobError{Code: http.StatusInternalServerError, Message: "ingestion failed unexpectedly"}
		}
	}()

	result = _ingestor.IngestDocument(ctx, job)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && result.Status != jobModel.JobStatusComplete {
		result.Status = jobModel.JobStatusError
		result.CurrentStep = jobModel.Error
		result.Error = jobModel.JobError{Code: http.StatusGatewayTimeout, Message: "ingestion timed out", Retry: true}
	}
	return result
}

// removeWorker expects the caller to have already taken the worker off currentWorkerCount.
func removeWorker(reason string) {
	workerWaitGroup.Done()
	metrics.DecrementActiveWorkerCount()
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
}

func saveJobState(ctx context.Context, job jobModel.Job, jobStatus jobModel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.Error("Failed to update job state", "jobId", job.Id, "err", err)
	}
}
