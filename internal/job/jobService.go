package job

import (
	"context"
	"sync/atomic"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/jobModel"
	"github.com/akolanti/AskStan/internal/metrics"
	"github.com/akolanti/AskStan/pkg/logger_i"
)

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	logger            *logger_i.Logger
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		logger:            logger_i.NewLogger("JobService"),
	}
}

// Enqueue records the job as queued and hands it to the worker pool. The send
// blocks while the buffer is full so uploads cannot outrun the workers.
func (s *Service) Enqueue(ctx context.Context, job jobModel.Job) error {
	log := s.logger.WithTrace(ctx, config.TRACE_ID_KEY).With("jobId", job.Id)

	if err := s.JobStore.SaveJob(ctx, job); err != nil {
		log.Error("Failed to save queued job", "error", err)
		return err
	}

	select {
	case s.JobChannel <- job:
	case <-ctx.Done():
		s.JobStore.DeleteJob(context.WithoutCancel(ctx), job.Id)
		return ctx.Err()
	}
	metrics.IncrementJobsInQueue()
	log.Info("Created new ingest job", "document", job.JobPayload.IngestFileName)

	// every ingest job may need its own worker, the idle timeout trims them again
	count := atomic.AddInt64(&s.RequestCount, 1)
	metrics.StartDispatcherSignalCount()
	log.Debug("Signalling dispatcher", "requestCount", count)
	select {
	case s.DispatcherChannel <- true:
	default:
	}
	return nil
}

func (s *Service) GetJob(ctx context.Context, id string) (jobModel.Job, bool) {
	if id == "" {
		return jobModel.Job{}, false
	}
	return s.JobStore.GetJob(ctx, id)
}
