package googleEmbedding

import (
	"context"
	"errors"

	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// the Gemini API rejects embed requests with more than 100 contents
const maxBatch = 100

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func splitBatches(chunks []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(chunks); i += size {
		end := min(i+size, len(chunks))
		batches = append(batches, chunks[i:end])
	}
	return batches
}

func classify(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return errorModel.FromStatusCode(serviceName, apiErr.Code, err)
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		se := &errorModel.ServiceError{Service: serviceName, Err: err}
		switch s.Code() {
		case codes.ResourceExhausted:
			logger.Warn("Rate limit hit", "error", err)
			se.RateLimited = true
		case codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
			se.Retryable = true
		}
		return se
	}
	return errorModel.FromTransport(ctx, serviceName, err)
}
