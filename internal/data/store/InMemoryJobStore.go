package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem JobStore")

// InMemoryJobStore keeps jobs in process. Finished jobs older than the TTL
// are dropped on the next save.
type InMemoryJobStore struct {
	jobMutex *sync.RWMutex
	jobMap   map[string]jobModel.Job
	ttl      time.Duration
}

func InitInMemoryJobStore(ttl time.Duration) *InMemoryJobStore {
	return &InMemoryJobStore{
		jobMutex: new(sync.RWMutex),
		jobMap:   make(map[string]jobModel.Job),
		ttl:      ttl,
	}
}

func (store *InMemoryJobStore) SaveJob(ctx context.Context, jobToStore jobModel.Job) error {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	store.jobMap[jobToStore.Id] = jobToStore
	store.evictExpired(time.Now())
	inMemLogger.ForContext(ctx).Debug("saved job", "jobId", jobToStore.Id, "status", jobToStore.Status)
	return nil
}

func (store *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	store.jobMutex.RLock()
	defer store.jobMutex.RUnlock()
	result, found := store.jobMap[jobId]
	inMemLogger.ForContext(ctx).Debug("job lookup", "jobId", jobId, "found", found)
	return result, found
}

func (store *InMemoryJobStore) DeleteJob(ctx context.Context, jobID string) {
	store.jobMutex.Lock()
	defer store.jobMutex.Unlock()
	delete(store.jobMap, jobID)
}

func (store *InMemoryJobStore) evictExpired(now time.Time) {
	if store.ttl <= 0 {
		return
	}
	for id, job := range store.jobMap {
		if !job.EndTime.IsZero() && now.Sub(job.EndTime) > store.ttl {
			delete(store.jobMap, id)
		}
	}
}
