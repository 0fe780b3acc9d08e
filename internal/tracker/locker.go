package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/data/redisStore"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"github.com/google/uuid"
)

// Locker guards a document id so only one ingestion runs for it at a time.
// Acquire never blocks: ok is false when someone else holds the lock.
type Locker interface {
	Acquire(ctx context.Context, id string) (release func(), ok bool, err error)
}

type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, id string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[id]; taken {
		return nil, false, nil
	}
	l.held[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, id)
			l.mu.Unlock()
		})
	}, true, nil
}

const lockPrefix = "ingest-lock:"

// RedisLocker shares locks between processes. The TTL bounds how long a
// crashed holder can block a document.
type RedisLocker struct {
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

func NewRedisLocker(store *redisStore.Store, ttl time.Duration) *RedisLocker {
	return &RedisLocker{store: store, ttl: ttl, logger: logger_i.NewLogger("ingest_lock")}
}

func (l *RedisLocker) Acquire(ctx context.Context, id string) (func(), bool, error) {
	token := uuid.NewString()
	key := lockPrefix + id
	ok, err := l.store.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, false, errorModel.Storage("acquire lock", err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's ctx may already be done
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
			defer cancel()
			if released, err := l.store.ReleaseIfOwner(releaseCtx, key, token); err != nil {
				l.logger.Error("failed to release ingest lock", "docId", id, "error", err)
			} else if !released {
				l.logger.Warn("ingest lock expired before release", "docId", id)
			}
		})
	}, true, nil
}
