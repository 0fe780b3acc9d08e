package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
)

// RetryAfterSeconds is what rate limited callers are told to wait.
const RetryAfterSeconds = 30

// ToJobError maps a domain failure to what API callers see. Internal errors
// carry the trace id so operators can find the matching log lines.
func ToJobError(err error, traceID string) jobModel.JobError {
	var inference *errorModel.InferenceError
	var extraction *errorModel.ExtractionError
	var unsupported *errorModel.UnsupportedFormatError
	var corrupt *errorModel.CorruptInputError
	var embedding *errorModel.EmbeddingError

	switch {
	case errors.Is(err, errorModel.ErrEmptyQuestion):
		return jobModel.JobError{Code: http.StatusBadRequest, Message: "question must not be empty"}
	case errors.Is(err, errorModel.ErrNotFound):
		return jobModel.JobError{Code: http.StatusNotFound, Message: "document not found"}
	case errors.As(err, &inference) && inference.RateLimited:
		return jobModel.JobError{
			Code:       http.StatusServiceUnavailable,
			Message:    "The answer service is busy, please try again shortly",
			Retry:      true,
			RetryAfter: RetryAfterSeconds,
		}
	case inference != nil:
		return jobModel.JobError{Code: http.StatusBadGateway, Message: "The answer service failed to respond", Retry: true}
	case errors.Is(err, errorModel.ErrIngestInProgress):
		return jobModel.JobError{Code: http.StatusConflict, Message: "document is already being ingested", Retry: true}
	case errors.As(err, &unsupported):
		return jobModel.JobError{Code: http.StatusUnprocessableEntity, Message: unsupported.Error()}
	case errors.As(err, &corrupt):
		return jobModel.JobError{Code: http.StatusUnprocessableEntity, Message: "the document could not be read as " + corrupt.Format}
	case errors.As(err, &extraction):
		return jobModel.JobError{Code: http.StatusUnprocessableEntity, Message: "no text could be extracted from the document"}
	case errors.As(err, &embedding):
		return jobModel.JobError{Code: http.StatusBadGateway, Message: "The embedding service failed", Retry: true}
	case errors.Is(err, context.DeadlineExceeded):
		return jobModel.JobError{Code: http.StatusGatewayTimeout, Message: "The request took too long", Retry: true}
	}
	return jobModel.JobError{
		Code:    http.StatusInternalServerError,
		Message: fmt.Sprintf("Internal Server Error (trace id %s)", traceID),
		Retry:   true,
	}
}
