package tracker

import (
	"context"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
)

// merge applies an upsert: incoming metadata wins, FirstSeen is kept from the
// existing record.
func merge(existing *documentModel.DocumentRecord, incoming documentModel.DocumentRecord, now time.Time) documentModel.DocumentRecord {
	if existing != nil && !existing.FirstSeen.IsZero() {
		incoming.FirstSeen = existing.FirstSeen
	}
	if incoming.FirstSeen.IsZero() {
		incoming.FirstSeen = now
	}
	if incoming.LastVerified.IsZero() {
		incoming.LastVerified = incoming.FirstSeen
	}
	if incoming.Status == "" {
		incoming.Status = documentModel.StatusPending
	}
	return incoming
}

func hasStatus(status documentModel.IngestStatus, wanted []documentModel.IngestStatus) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		if status == w {
			return true
		}
	}
	return false
}

// Stats aggregates per-category counts for the status surfaces.
func Stats(ctx context.Context, t documentModel.Tracker) ([]documentModel.CategoryStats, error) {
	stats := make([]documentModel.CategoryStats, 0, len(documentModel.Categories))
	for _, category := range documentModel.Categories {
		records, err := t.ListByCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		s := documentModel.CategoryStats{Category: category, Total: len(records)}
		for _, r := range records {
			switch r.Status {
			case documentModel.StatusIngested:
				s.Ingested++
			case documentModel.StatusFailed:
				s.Failed++
			default:
				s.Pending++
			}
			s.Chunks += r.ChunkCount
		}
		stats = append(stats, s)
	}
	return stats, nil
}
