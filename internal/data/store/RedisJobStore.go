package store

import (
	"context"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/data/redisStore"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

const jobKeyPrefix = "ingest_job:"

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func NewRedisJobStore(ctx context.Context, opts redisStore.Options) (*RedisJobStore, error) {
	s, err := redisStore.GetRedisStore(ctx, opts, config.RedisJobStore)
	if err != nil {
		return nil, err
	}
	return &RedisJobStore{
		store:  s,
		logger: logger_i.NewLogger("JobStore"),
	}, nil
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("jobId", job.Id)
	if err := s.store.SetJSON(ctx, jobKeyPrefix+job.Id, job, config.RedisJobStoreTTL); err != nil {
		log.Error("Error saving job to Redis", "error", err)
		return err
	}
	log.Debug("Saved job to Redis", "status", job.Status)
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("jobId", jobId)

	found, err := s.store.GetJSON(ctx, jobKeyPrefix+jobId, &job)
	if err != nil {
		log.Error("Error reading job from Redis", "error", err)
		return jobModel.Job{}, false
	}
	return job, found
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, jobKeyPrefix+jobID); err != nil {
		s.logger.Error("Error deleting job from Redis", "jobId", jobID, "error", err)
		return
	}
	s.logger.Debug("Job deleted from Redis", "jobId", jobID)
}

func TestJobStore(store *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  store,
		logger: logger_i.NewLogger("test redis"),
	}
}
