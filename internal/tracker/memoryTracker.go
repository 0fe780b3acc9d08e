package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
)

type MemoryTracker struct {
	mu         sync.RWMutex
	records    map[string]documentModel.DocumentRecord
	byCategory map[documentModel.Category][]string
	order      []string
	now        func() time.Time
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{
		records:    make(map[string]documentModel.DocumentRecord),
		byCategory: make(map[documentModel.Category][]string),
		now:        time.Now,
	}
}

func (m *MemoryTracker) IsKnown(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok, nil
}

func (m *MemoryTracker) Get(ctx context.Context, id string) (documentModel.DocumentRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	return r, ok, nil
}

func (m *MemoryTracker) Record(ctx context.Context, record documentModel.DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.records[record.ID]
	if !ok {
		m.byCategory[record.Category] = append(m.byCategory[record.Category], record.ID)
		m.order = append(m.order, record.ID)
		m.records[record.ID] = merge(nil, record, m.now())
		return nil
	}
	m.records[record.ID] = merge(&existing, record, m.now())
	return nil
}

func (m *MemoryTracker) ListByCategory(ctx context.Context, category documentModel.Category) ([]documentModel.DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byCategory[category]
	out := make([]documentModel.DocumentRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *MemoryTracker) ListByStatus(ctx context.Context, statuses ...documentModel.IngestStatus) ([]documentModel.DocumentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []documentModel.DocumentRecord
	for _, id := range m.order {
		if r := m.records[id]; hasStatus(r.Status, statuses) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryTracker) Touch(ctx context.Context, id string, verifiedAt time.Time) error {
	return m.update(id, func(r *documentModel.DocumentRecord) {
		r.LastVerified = verifiedAt
	})
}

func (m *MemoryTracker) MarkIngested(ctx context.Context, id string, contentHash string, chunkCount int) error {
	return m.update(id, func(r *documentModel.DocumentRecord) {
		r.Status = documentModel.StatusIngested
		r.ContentHash = contentHash
		r.ChunkCount = chunkCount
		r.LastError = ""
	})
}

func (m *MemoryTracker) MarkFailed(ctx context.Context, id string, reason string) error {
	return m.update(id, func(r *documentModel.DocumentRecord) {
		r.Status = documentModel.StatusFailed
		r.LastError = reason
	})
}

func (m *MemoryTracker) update(id string, fn func(r *documentModel.DocumentRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return errorModel.Storage("update "+id, errorModel.ErrNotFound)
	}
	fn(&r)
	m.records[id] = r
	return nil
}

func (m *MemoryTracker) Close() error { return nil }
