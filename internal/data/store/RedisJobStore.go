package store

import (
	"context"
	"encoding/json"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/data/redisStore"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

const jobKeyPrefix = "job:"

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisJobStore(ctx context.Context, settings config.RedisSettings) (*RedisJobStore, error) {
	s, err := redisStore.GetRedisStore(ctx, settings, config.RedisJobStore)
	if err != nil {
		return nil, err
	}
	return NewRedisJobStore(s), nil
}

func NewRedisJobStore(store *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  store,
		logger: logger_i.NewLogger("JobStore"),
	}
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	log := s.logger.ForContext(ctx).With("jobId", job.Id)
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, jobKeyPrefix+job.Id, data, config.RedisJobStoreTTL); err != nil {
		log.Error("failed to save job", "error", err)
		return err
	}
	log.Debug("saved job to redis", "status", job.Status)
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	log := s.logger.ForContext(ctx).With("jobId", jobId)
	val, err := s.store.Get(ctx, jobKeyPrefix+jobId)
	if s.store.IsNil(err) {
		return job, false
	} else if err != nil {
		log.Error("failed to read job", "error", err)
		return job, false
	}

	if err := json.Unmarshal([]byte(val), &job); err != nil {
		log.Error("stored job is unreadable", "error", err)
		return job, false
	}
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, jobKeyPrefix+jobID); err != nil {
		s.logger.ForContext(ctx).Error("error deleting job from redis", "jobId", jobID, "error", err)
		return
	}
	s.logger.ForContext(ctx).Debug("job deleted from redis", "jobId", jobID)
}
