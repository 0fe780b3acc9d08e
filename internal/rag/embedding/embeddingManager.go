package embedding

import (
	"context"
	"errors"

	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
)

// Embedder turns text into vectors. The same embedder must be used for
// ingestion and for queries; every vector it returns has Dimension() entries.
// Failures are *errorModel.ServiceError so callers can decide on retries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// CheckBatch validates a provider response against the request.
func CheckBatch(service string, want int, dimension int, vectors [][]float32) error {
	if len(vectors) != want {
		return &errorModel.ServiceError{Service: service, Err: errors.New("embedding count does not match input count")}
	}
	for _, v := range vectors {
		if len(v) != dimension {
			return &errorModel.ServiceError{Service: service, Err: errors.New("embedding dimension mismatch")}
		}
	}
	return nil
}
