package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
)

func TestToJobError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantCode   int
		wantRetry  bool
		retryAfter int
	}{
		{"empty question", errorModel.ErrEmptyQuestion, http.StatusBadRequest, false, 0},
		{"not found", fmt.Errorf("lookup: %w", errorModel.ErrNotFound), http.StatusNotFound, false, 0},
		{"rate limited", &errorModel.InferenceError{RateLimited: true, Attempts: 4, Err: errors.New("429")}, http.StatusServiceUnavailable, true, RetryAfterSeconds},
		{"wrapped model failure", fmt.Errorf("answer: %w", &errorModel.InferenceError{Err: errors.New("boom")}), http.StatusBadGateway, true, 0},
		{"ingest in progress", errorModel.ErrIngestInProgress, http.StatusConflict, true, 0},
		{"unsupported", &errorModel.UnsupportedFormatError{Format: ".txt"}, http.StatusUnprocessableEntity, false, 0},
		{"corrupt", &errorModel.CorruptInputError{Format: "pdf", Err: errors.New("xref")}, http.StatusUnprocessableEntity, false, 0},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, true, 0},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, true, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToJobError(tc.err, "trace-9")
			assert.Equal(t, tc.wantCode, got.Code)
			assert.Equal(t, tc.wantRetry, got.Retry)
			assert.Equal(t, tc.retryAfter, got.RetryAfter)
			assert.NotEmpty(t, got.Message)
		})
	}

	internal := ToJobError(errors.New("x"), "trace-9")
	assert.Contains(t, internal.Message, "trace-9")
}

func TestToAPIResponse(t *testing.T) {
	t.Run("completed query", func(t *testing.T) {
		res := ToAPIResponse(jobModel.Job{
			Id:      "j1",
			JobType: jobModel.JobTypeQuery,
			Status:  jobModel.JobStatusComplete,
			JobPayload: jobModel.JobPayload{
				Question: "q", Answer: "a", NoResults: true,
			},
		})
		require.NotNil(t, res.Result.AnswerResponse)
		assert.NotNil(t, res.Result.AnswerResponse.Citations)
		assert.True(t, res.Result.AnswerResponse.NoResults)
		assert.Nil(t, res.Error)
	})

	t.Run("running query has no answer yet", func(t *testing.T) {
		res := ToAPIResponse(jobModel.Job{Id: "j2", JobType: jobModel.JobTypeQuery, Status: jobModel.JobStatusRunning})
		assert.Nil(t, res.Result.AnswerResponse)
		assert.Equal(t, "RUNNING", res.Result.Status)
	})

	t.Run("failed ingest", func(t *testing.T) {
		res := ToAPIResponse(jobModel.Job{
			Id:         "j3",
			TraceId:    "t3",
			JobType:    jobModel.JobTypeIngest,
			Status:     jobModel.JobStatusError,
			JobPayload: jobModel.JobPayload{DocumentID: "doc", FileName: "a.pdf"},
			Error:      jobModel.JobError{Code: 422, Message: "no text"},
		})
		require.NotNil(t, res.Result.IngestResponse)
		assert.Equal(t, "doc", res.Result.IngestResponse.DocumentId)
		require.NotNil(t, res.Error)
		assert.Equal(t, "t3", res.Error.TraceId)
	})
}

func TestToUpdateStatusResponse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	never := ToUpdateStatusResponse(schedulerModel.Status{Phase: schedulerModel.Idle, NextScheduledTime: now}, now)
	assert.Nil(t, never.LastSuccess)
	assert.Empty(t, never.TimeSinceLastSuccess)

	res := ToUpdateStatusResponse(schedulerModel.Status{
		Phase:       schedulerModel.Ingesting,
		LastSuccess: now.Add(-2*time.Hour - 500*time.Millisecond),
		LastAttempt: now.Add(-time.Minute),
	}, now)
	require.NotNil(t, res.LastSuccess)
	require.NotNil(t, res.LastAttempt)
	assert.Equal(t, "2h0m0s", res.TimeSinceLastSuccess)
}

func TestToDocumentStatsResponse(t *testing.T) {
	res := ToDocumentStatsResponse([]documentModel.CategoryStats{
		{Category: documentModel.Circular, Total: 3},
		{Category: documentModel.Regulation, Total: 2},
	})
	assert.Equal(t, 5, res.Total)
}
