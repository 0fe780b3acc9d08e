package vectorDB

import (
	"context"
	"math"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
)

// Store owns the chunk records. Implementations return *errorModel.StorageError.
type Store interface {
	EnsureCollection(ctx context.Context) error

	// Upsert writes chunks by (document, version, index). Only ReplaceDocument
	// retracts other versions atomically; the memory store drops them on the
	// first chunk of a new version.
	Upsert(ctx context.Context, chunks []documentModel.ChunkRecord) error

	// ReplaceDocument makes chunks the only visible chunks of documentID.
	// Readers see either the previous set or the new one, never a mix.
	ReplaceDocument(ctx context.Context, documentID, documentHash string, chunks []documentModel.ChunkRecord) error

	// CountDocument counts the visible chunks of one document version.
	CountDocument(ctx context.Context, documentID, documentHash string) (int, error)

	// Search returns at most k chunks by descending cosine similarity.
	Search(ctx context.Context, query []float32, k int) ([]documentModel.ScoredChunk, error)
}

type CachedAnswer struct {
	Question  string                `json:"question"`
	Answer    string                `json:"answer"`
	Citations []queryModel.Citation `json:"citations"`
	SavedAt   time.Time             `json:"saved_at"`
	Score     float32               `json:"-"`
}

// AnswerCache keeps answers to semantically identical questions.
type AnswerCache interface {
	Lookup(ctx context.Context, query []float32) (CachedAnswer, bool, error)
	Save(ctx context.Context, query []float32, answer CachedAnswer) error
	Invalidate(ctx context.Context) error
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty
// or the lengths differ.
func Cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
