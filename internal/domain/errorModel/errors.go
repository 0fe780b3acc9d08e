package errorModel

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrEmptyQuestion    = errors.New("question is empty")
	ErrIngestInProgress = errors.New("document ingestion already in progress")
	ErrCycleInProgress  = errors.New("update cycle already in progress")
	ErrCorruptState     = errors.New("persisted scheduler state is unreadable")
	ErrNotFound         = errors.New("not found")
)

// ServiceError is returned by the embedding and llm clients.
type ServiceError struct {
	Service     string
	StatusCode  int
	Retryable   bool
	RateLimited bool
	Err         error
}

func (e *ServiceError) Error() string {
	switch {
	case e.RateLimited:
		return fmt.Sprintf("%s: rate limited: %v", e.Service, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// IsRetryable is the retry predicate shared by every external call site.
func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable || se.RateLimited
	}
	return false
}

func IsRateLimited(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.RateLimited
}

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

type ExtractionError struct {
	DocumentID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.DocumentID, e.Err)
}
func (e *ExtractionError) Unwrap() error { return e.Err }

type EmbeddingError struct {
	DocumentID string
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed for %s: %v", e.DocumentID, e.Err)
}
func (e *EmbeddingError) Unwrap() error { return e.Err }

type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Format)
}

type CorruptInputError struct {
	Format string
	Err    error
}

func (e *CorruptInputError) Error() string {
	return fmt.Sprintf("corrupt %s input: %v", e.Format, e.Err)
}
func (e *CorruptInputError) Unwrap() error { return e.Err }

type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string { return fmt.Sprintf("retrieval (%s): %v", e.Stage, e.Err) }
func (e *RetrievalError) Unwrap() error { return e.Err }

type InferenceError struct {
	RateLimited bool
	Attempts    int
	Err         error
}

func (e *InferenceError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("inference rate limited after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("inference failed after %d attempts: %v", e.Attempts, e.Err)
}
func (e *InferenceError) Unwrap() error { return e.Err }

// ListingError means the category listing itself could not be enumerated.
type ListingError struct {
	Category string
	URL      string
	Err      error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("listing %s (%s): %v", e.Category, e.URL, e.Err)
}
func (e *ListingError) Unwrap() error { return e.Err }

// FromStatusCode classifies an HTTP-style status returned by a remote model
// service: 429 is a rate limit, 408 and 5xx are worth retrying.
func FromStatusCode(service string, code int, err error) *ServiceError {
	se := &ServiceError{Service: service, StatusCode: code, Err: err}
	switch {
	case code == 429:
		se.RateLimited = true
	case code == 408 || code >= 500:
		se.Retryable = true
	}
	return se
}

// FromTransport classifies failures that never produced a status code.
// Cancellation by the caller is returned as is.
func FromTransport(ctx context.Context, service string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var netErr net.Error
	retryable := errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded)
	return &ServiceError{Service: service, Retryable: retryable, Err: err}
}
