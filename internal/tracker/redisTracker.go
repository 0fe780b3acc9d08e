package tracker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/data/redisStore"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

const (
	recordPrefix   = "doc:"
	categoryPrefix = "category:"
)

// RedisTracker keeps one JSON value per document and an insertion-ordered
// list of ids per category.
type RedisTracker struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisTracker(ctx context.Context, settings config.RedisSettings) (*RedisTracker, error) {
	store, err := redisStore.GetRedisStore(ctx, settings, config.RedisTrackerStore)
	if err != nil {
		return nil, err
	}
	return NewRedisTracker(store), nil
}

func NewRedisTracker(store *redisStore.Store) *RedisTracker {
	return &RedisTracker{store: store, logger: logger_i.NewLogger("tracker_redis")}
}

func (r *RedisTracker) IsKnown(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, recordPrefix+id)
	if err != nil {
		return false, errorModel.Storage("is known", err)
	}
	return ok, nil
}

func (r *RedisTracker) Get(ctx context.Context, id string) (documentModel.DocumentRecord, bool, error) {
	var record documentModel.DocumentRecord
	val, err := r.store.Get(ctx, recordPrefix+id)
	if r.store.IsNil(err) {
		return record, false, nil
	}
	if err != nil {
		return record, false, errorModel.Storage("get", err)
	}
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return record, false, errorModel.Storage("decode "+id, err)
	}
	return record, true, nil
}

func (r *RedisTracker) Record(ctx context.Context, record documentModel.DocumentRecord) error {
	log := r.logger.ForContext(ctx).With("docId", record.ID)

	fresh := merge(nil, record, time.Now())
	data, err := json.Marshal(fresh)
	if err != nil {
		return errorModel.Storage("encode", err)
	}

	// SETNX decides the single first writer, which alone appends to the category list
	created, err := r.store.SetNX(ctx, recordPrefix+record.ID, data, 0)
	if err != nil {
		return errorModel.Storage("record", err)
	}
	if created {
		log.Debug("new document recorded", "category", record.Category)
		if err := r.store.ListPush(ctx, categoryPrefix+string(record.Category), record.ID); err != nil {
			return errorModel.Storage("category index", err)
		}
		return nil
	}

	existing, found, err := r.Get(ctx, record.ID)
	if err != nil {
		return err
	}
	var prev *documentModel.DocumentRecord
	if found {
		prev = &existing
	}
	return r.put(ctx, merge(prev, record, time.Now()))
}

func (r *RedisTracker) ListByCategory(ctx context.Context, category documentModel.Category) ([]documentModel.DocumentRecord, error) {
	ids, err := r.store.ListGetAll(ctx, categoryPrefix+string(category))
	if err != nil && !r.store.IsNil(err) {
		return nil, errorModel.Storage("list category", err)
	}
	return r.load(ctx, ids)
}

func (r *RedisTracker) ListByStatus(ctx context.Context, statuses ...documentModel.IngestStatus) ([]documentModel.DocumentRecord, error) {
	var out []documentModel.DocumentRecord
	for _, category := range documentModel.Categories {
		records, err := r.ListByCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if hasStatus(rec.Status, statuses) {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (r *RedisTracker) Touch(ctx context.Context, id string, verifiedAt time.Time) error {
	return r.update(ctx, id, func(rec *documentModel.DocumentRecord) {
		rec.LastVerified = verifiedAt
	})
}

func (r *RedisTracker) MarkIngested(ctx context.Context, id string, contentHash string, chunkCount int) error {
	return r.update(ctx, id, func(rec *documentModel.DocumentRecord) {
		rec.Status = documentModel.StatusIngested
		rec.ContentHash = contentHash
		rec.ChunkCount = chunkCount
		rec.LastError = ""
	})
}

func (r *RedisTracker) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.update(ctx, id, func(rec *documentModel.DocumentRecord) {
		rec.Status = documentModel.StatusFailed
		rec.LastError = reason
	})
}

// Close is a no-op, the shared client is closed with the service context.
func (r *RedisTracker) Close() error { return nil }

func (r *RedisTracker) update(ctx context.Context, id string, fn func(rec *documentModel.DocumentRecord)) error {
	rec, found, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return errorModel.Storage("update "+id, errorModel.ErrNotFound)
	}
	fn(&rec)
	return r.put(ctx, rec)
}

func (r *RedisTracker) put(ctx context.Context, rec documentModel.DocumentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errorModel.Storage("encode", err)
	}
	if err := r.store.Set(ctx, recordPrefix+rec.ID, data, 0); err != nil {
		return errorModel.Storage("record", err)
	}
	return nil
}

func (r *RedisTracker) load(ctx context.Context, ids []string) ([]documentModel.DocumentRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordPrefix + id
	}
	values, err := r.store.MGet(ctx, keys...)
	if err != nil {
		return nil, errorModel.Storage("load records", err)
	}
	out := make([]documentModel.DocumentRecord, 0, len(values))
	for i, v := range values {
		if v == "" {
			r.logger.Warn("category index points at a missing record", "docId", ids[i])
			continue
		}
		var rec documentModel.DocumentRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, errorModel.Storage("decode "+ids[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}
