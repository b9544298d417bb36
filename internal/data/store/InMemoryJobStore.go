package store

import (
	"context"
	"sync"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

// InMemoryJobStore is used when Redis is not configured. Jobs are copied in
// and out so a worker updating its job never races a status reader.
type InMemoryJobStore struct {
	mu     sync.RWMutex
	jobs   map[string]jobModel.Job
	logger *logger_i.Logger
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs:   make(map[string]jobModel.Job),
		logger: logger_i.NewLogger("InMem JobStore"),
	}
}

func (s *InMemoryJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	s.mu.Lock()
	s.jobs[job.Id] = copyJob(job)
	s.mu.Unlock()

	s.logger.WithTrace(ctx, config.TRACE_ID_KEY).Debug("Saved job", "jobId", job.Id, "status", job.Status, "step", job.CurrentStep)
	return nil
}

func (s *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, found := s.jobs[jobId]
	if !found {
		return jobModel.Job{}, false
	}
	return copyJob(job), true
}

func (s *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
}

func copyJob(job jobModel.Job) jobModel.Job {
	if job.JobPayload.Stats != nil {
		stats := *job.JobPayload.Stats
		job.JobPayload.Stats = &stats
	}
	return job
}
