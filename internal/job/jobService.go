package job

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
)

var ErrQueueFull = errors.New("job queue is full")

// Service carries the queue between the HTTP handlers and the worker pool.
type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
	}
}

// Enqueue saves j and hands it to the worker pool. The send blocks while the
// queue is full, until ctx is done; the saved job is then removed again.
func (s *Service) Enqueue(ctx context.Context, j jobModel.Job) error {
	if err := s.JobStore.SaveJob(ctx, j); err != nil {
		return err
	}
	select {
	case s.JobChannel <- j:
	case <-ctx.Done():
		s.JobStore.DeleteJob(context.WithoutCancel(ctx), j.Id)
		return ErrQueueFull
	}
	metrics.IncrementJobsInQueue()

	// a new worker every RequestsPerNewWorkerCount requests, and one per
	// ingest job; idle workers retire on their own
	count := atomic.AddInt64(&s.RequestCount, 1)
	if count%config.RequestsPerNewWorkerCount == 0 || j.JobType == jobModel.JobTypeIngest {
		metrics.StartDispatcherSignalCount()
		select {
		case s.DispatcherChannel <- true:
		default:
		}
	}
	return nil
}

// Pending is the number of jobs waiting for a worker.
func (s *Service) Pending() int {
	return len(s.JobChannel)
}
