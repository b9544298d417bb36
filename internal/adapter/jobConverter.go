package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/AskStan/internal/api"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	return api.JobResponse{
		Id:        job.Id,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result: api.Result{
			Status:       string(job.Status),
			CurrentStep:  string(job.CurrentStep),
			IngestResult: ToIngestResult(job.JobPayload),
		},
	}
}

func ToIngestResult(payload jobModel.JobPayload) *api.IngestResult {
	if payload.Stats == nil {
		return nil
	}
	s := payload.Stats
	return &api.IngestResult{
		Document:       payload.IngestFileName,
		TotalChunks:    s.TotalChunks,
		TotalChars:     s.TotalChars,
		AvgChunkSize:   s.AvgChunkSize,
		MinChunkSize:   s.MinChunkSize,
		MaxChunkSize:   s.MaxChunkSize,
		Pages:          s.Pages,
		EmbeddingDim:   s.EmbeddingDim,
		UpsertedChunks: s.UpsertedChunks,
	}
}

func ToNewJob(id string, traceId string, docName string, path string) jobModel.Job {
	return jobModel.Job{
		Id:          id,
		TraceId:     traceId,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.IngestInit,
		JobPayload: jobModel.JobPayload{
			IngestFileName: docName,
			IngestURL:      path,
		},
	}
}

func BadRequest(id string, message string, code int) api.ErrorResponse {
	return api.ErrorResponse{
		Id: id,
		Error: api.JobOutgoingError{
			Code:    code,
			Message: message,
			Retry:   code == 429 || code >= 500,
		},
	}
}
