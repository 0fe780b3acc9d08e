package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/ComplianceGPT/internal/api"
	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/data/store"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
	"github.com/akolanti/ComplianceGPT/internal/job"
	"github.com/akolanti/ComplianceGPT/internal/tracker"
)

type mockRag struct {
	OnAnswer func(ctx context.Context, question string) (queryModel.QueryResult, error)
}

func (m *mockRag) Answer(ctx context.Context, question string) (queryModel.QueryResult, error) {
	return m.OnAnswer(ctx, question)
}

func (m *mockRag) ProcessRequest(ctx context.Context, j jobModel.Job) jobModel.Job { return j }

func (m *mockRag) IngestDocument(ctx context.Context, j jobModel.Job) jobModel.Job { return j }

type mockScheduler struct {
	result schedulerModel.TriggerResult
	status schedulerModel.Status
}

func (m *mockScheduler) TriggerForceUpdate(context.Context) schedulerModel.TriggerResult {
	return m.result
}

func (m *mockScheduler) Status(context.Context) schedulerModel.Status { return m.status }

type mockUploader struct {
	OnUpload func(category documentModel.Category, name, title string, data []byte) (documentModel.DocumentRecord, bool, error)
}

func (m *mockUploader) Upload(_ context.Context, category documentModel.Category, name, title string, data []byte) (documentModel.DocumentRecord, bool, error) {
	return m.OnUpload(category, name, title, data)
}

type fixture struct {
	handler  *Handler
	jobs     *job.Service
	store    *store.InMemoryJobStore
	tracker  *tracker.MemoryTracker
	rag      *mockRag
	sched    *mockScheduler
	uploader *mockUploader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.InitInMemoryJobStore(time.Hour),
		tracker:  tracker.NewMemoryTracker(),
		rag:      &mockRag{},
		sched:    &mockScheduler{result: schedulerModel.Accepted},
		uploader: &mockUploader{},
	}
	f.jobs = job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobModel.Job, 4),
		DispatcherChannel: make(chan bool, 1),
		JobStore:          f.store,
	})
	f.handler = New(Dependencies{
		JobService:   f.jobs,
		Rag:          f.rag,
		Scheduler:    f.sched,
		Tracker:      f.tracker,
		Uploader:     f.uploader,
		QueryTimeout: time.Second,
	})
	return f
}

func withTrace(r *http.Request) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), config.TRACE_ID_KEY, "trace-123"))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAskHandler(t *testing.T) {
	cases := []struct {
		name       string
		body       string
		answer     func(context.Context, string) (queryModel.QueryResult, error)
		wantCode   int
		retryAfter string
	}{
		{
			name: "answered",
			body: `{"question":"What is the free look period?"}`,
			answer: func(_ context.Context, q string) (queryModel.QueryResult, error) {
				return queryModel.QueryResult{Question: q, Answer: "15 days", Citations: []queryModel.Citation{{DocumentID: "d", Page: 2}}}, nil
			},
			wantCode: http.StatusOK,
		},
		{
			name: "no results is not an error",
			body: `{"question":"unrelated"}`,
			answer: func(_ context.Context, q string) (queryModel.QueryResult, error) {
				return queryModel.QueryResult{Question: q, Answer: "none", NoResults: true}, nil
			},
			wantCode: http.StatusOK,
		},
		{
			name:     "empty question",
			body:     `{"question":"   "}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad json",
			body:     `{`,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "rate limited",
			body: `{"question":"q"}`,
			answer: func(context.Context, string) (queryModel.QueryResult, error) {
				return queryModel.QueryResult{}, &errorModel.InferenceError{RateLimited: true, Attempts: 4, Err: errors.New("429")}
			},
			wantCode:   http.StatusServiceUnavailable,
			retryAfter: "30",
		},
		{
			name: "model failure",
			body: `{"question":"q"}`,
			answer: func(context.Context, string) (queryModel.QueryResult, error) {
				return queryModel.QueryResult{}, &errorModel.InferenceError{Err: errors.New("500")}
			},
			wantCode: http.StatusBadGateway,
		},
		{
			name: "retrieval failure carries trace id",
			body: `{"question":"q"}`,
			answer: func(context.Context, string) (queryModel.QueryResult, error) {
				return queryModel.QueryResult{}, &errorModel.RetrievalError{Stage: "search", Err: errors.New("qdrant down")}
			},
			wantCode: http.StatusInternalServerError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.rag.OnAnswer = tc.answer
			rec := httptest.NewRecorder()
			f.handler.AskHandler(rec, withTrace(httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(tc.body))))

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.retryAfter, rec.Header().Get("Retry-After"))
			if tc.wantCode == http.StatusOK {
				res := decode[api.AnswerResponse](t, rec)
				assert.NotNil(t, res.Citations)
				assert.Equal(t, "trace-123", res.TraceId)
			}
			if tc.wantCode == http.StatusInternalServerError {
				res := decode[api.JobResponse](t, rec)
				require.NotNil(t, res.Error)
				assert.Contains(t, res.Error.Message, "trace-123")
			}
		})
	}
}

func TestAskHandler_CallerLeavingDoesNotCancelQuery(t *testing.T) {
	f := newFixture(t)
	queryErr := make(chan error, 1)
	started := make(chan struct{})
	release := make(chan struct{})
	f.rag.OnAnswer = func(ctx context.Context, _ string) (queryModel.QueryResult, error) {
		close(started)
		<-release
		queryErr <- ctx.Err()
		return queryModel.QueryResult{Answer: "late"}, nil
	}

	reqCtx, cancel := context.WithCancel(context.Background())
	req := withTrace(httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q"}`))).WithContext(reqCtx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		f.handler.AskHandler(rec, req)
		close(done)
	}()
	<-started
	cancel()
	<-done
	close(release)

	assert.NoError(t, <-queryErr)
}

func TestQuestionHandler_QueuesJob(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handler.QuestionHandler(rec, withTrace(httptest.NewRequest(http.MethodPost, "/questions", strings.NewReader(`{"question":"Who regulates insurers?"}`))))

	require.Equal(t, http.StatusAccepted, rec.Code)
	res := decode[api.InitJobResponse](t, rec)
	assert.Equal(t, "/status/"+res.Id, res.StatusURL)

	queued := <-f.jobs.JobChannel
	assert.Equal(t, res.Id, queued.Id)
	assert.Equal(t, jobModel.JobTypeQuery, queued.JobType)
	assert.Equal(t, "Who regulates insurers?", queued.JobPayload.Question)
	assert.Equal(t, "trace-123", queued.TraceId)

	saved, found := f.store.GetJob(context.Background(), res.Id)
	require.True(t, found)
	assert.Equal(t, jobModel.JobStatusQueued, saved.Status)
}

func TestGetStatusHandler(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SaveJob(context.Background(), jobModel.Job{
		Id:      "job-1",
		JobType: jobModel.JobTypeQuery,
		Status:  jobModel.JobStatusComplete,
		JobPayload: jobModel.JobPayload{
			Question: "q", Answer: "a",
		},
	}))

	r := chi.NewRouter()
	r.Get("/status/{id}", f.handler.GetStatusHandler)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, withTrace(httptest.NewRequest(http.MethodGet, "/status/job-1", nil)))
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[api.JobResponse](t, rec)
		require.NotNil(t, res.Result.AnswerResponse)
		assert.Equal(t, "a", res.Result.AnswerResponse.Answer)
		assert.Nil(t, res.Error)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, withTrace(httptest.NewRequest(http.MethodGet, "/status/nope", nil)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func uploadRequest(t *testing.T, category, fileName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if category != "" {
		require.NoError(t, mw.WriteField("category", category))
	}
	require.NoError(t, mw.WriteField("title", "Motor Guidelines"))
	if fileName != "" {
		part, err := mw.CreateFormFile("document", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return withTrace(req)
}

func TestPostDocumentHandler(t *testing.T) {
	t.Run("queues ingestion", func(t *testing.T) {
		f := newFixture(t)
		f.uploader.OnUpload = func(category documentModel.Category, name, title string, data []byte) (documentModel.DocumentRecord, bool, error) {
			assert.Equal(t, documentModel.Guideline, category)
			assert.Equal(t, "motor.pdf", name)
			assert.Equal(t, "Motor Guidelines", title)
			assert.Equal(t, []byte("%PDF-1.4"), data)
			return documentModel.DocumentRecord{ID: "doc-9", Status: documentModel.StatusPending}, false, nil
		}
		rec := httptest.NewRecorder()
		f.handler.PostDocumentHandler(rec, uploadRequest(t, "guideline", "motor.pdf", []byte("%PDF-1.4")))

		require.Equal(t, http.StatusAccepted, rec.Code)
		res := decode[api.UploadResponse](t, rec)
		assert.Equal(t, "doc-9", res.DocumentId)

		queued := <-f.jobs.JobChannel
		assert.Equal(t, jobModel.JobTypeIngest, queued.JobType)
		assert.Equal(t, "doc-9", queued.JobPayload.DocumentID)
		assert.Equal(t, "guideline", queued.JobPayload.Category)
	})

	t.Run("identical ingested upload queues nothing", func(t *testing.T) {
		f := newFixture(t)
		f.uploader.OnUpload = func(documentModel.Category, string, string, []byte) (documentModel.DocumentRecord, bool, error) {
			return documentModel.DocumentRecord{ID: "doc-9", Status: documentModel.StatusIngested}, true, nil
		}
		rec := httptest.NewRecorder()
		f.handler.PostDocumentHandler(rec, uploadRequest(t, "guideline", "motor.pdf", []byte("%PDF-1.4")))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[api.UploadResponse](t, rec).Unchanged)
		assert.Len(t, f.jobs.JobChannel, 0)
	})

	t.Run("unknown category", func(t *testing.T) {
		f := newFixture(t)
		rec := httptest.NewRecorder()
		f.handler.PostDocumentHandler(rec, uploadRequest(t, "memo", "motor.pdf", []byte("x")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t)
		rec := httptest.NewRecorder()
		f.handler.PostDocumentHandler(rec, uploadRequest(t, "circular", "", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported format", func(t *testing.T) {
		f := newFixture(t)
		f.uploader.OnUpload = func(documentModel.Category, string, string, []byte) (documentModel.DocumentRecord, bool, error) {
			return documentModel.DocumentRecord{}, false, &errorModel.UnsupportedFormatError{Format: ".txt"}
		}
		rec := httptest.NewRecorder()
		f.handler.PostDocumentHandler(rec, uploadRequest(t, "circular", "notes.txt", []byte("x")))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestDocumentHandlers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.tracker.Record(ctx, documentModel.DocumentRecord{ID: "a", Category: documentModel.Circular, Status: documentModel.StatusIngested, ChunkCount: 4}))
	require.NoError(t, f.tracker.Record(ctx, documentModel.DocumentRecord{ID: "b", Category: documentModel.Circular, Status: documentModel.StatusFailed}))
	require.NoError(t, f.tracker.Record(ctx, documentModel.DocumentRecord{ID: "c", Category: documentModel.Regulation, Status: documentModel.StatusPending}))

	t.Run("list all", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.ListDocumentsHandler(rec, withTrace(httptest.NewRequest(http.MethodGet, "/documents", nil)))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, decode[api.DocumentListResponse](t, rec).Count)
	})

	t.Run("list category", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.ListDocumentsHandler(rec, withTrace(httptest.NewRequest(http.MethodGet, "/documents?category=regulation", nil)))
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[api.DocumentListResponse](t, rec)
		require.Equal(t, 1, res.Count)
		assert.Equal(t, "c", res.Documents[0].Id)
	})

	t.Run("bad category", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.ListDocumentsHandler(rec, withTrace(httptest.NewRequest(http.MethodGet, "/documents?category=memo", nil)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		f.handler.DocumentStatsHandler(rec, withTrace(httptest.NewRequest(http.MethodGet, "/documents/stats", nil)))
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[api.DocumentStatsResponse](t, rec)
		assert.Equal(t, 3, res.Total)
		for _, s := range res.Categories {
			if s.Category == documentModel.Circular {
				assert.Equal(t, 1, s.Ingested)
				assert.Equal(t, 1, s.Failed)
				assert.Equal(t, 4, s.Chunks)
			}
		}
	})
}

func TestUpdateHandlers(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.handler.TriggerUpdateHandler(rec, withTrace(httptest.NewRequest(http.MethodPost, "/updates", nil)))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, schedulerModel.Accepted, decode[api.UpdateTriggerResponse](t, rec).Result)

	f.sched.result = schedulerModel.Coalesced
	rec = httptest.NewRecorder()
	f.handler.TriggerUpdateHandler(rec, withTrace(httptest.NewRequest(http.MethodPost, "/updates", nil)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schedulerModel.Coalesced, decode[api.UpdateTriggerResponse](t, rec).Result)

	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	f.handler.now = func() time.Time { return now }
	f.sched.status = schedulerModel.Status{
		Phase:             schedulerModel.Idle,
		LastSuccess:       now.Add(-90 * time.Minute),
		NextScheduledTime: now.Add(10*time.Hour + 30*time.Minute),
		Interval:          "12h0m0s",
		DocumentsAdded:    2,
	}
	rec = httptest.NewRecorder()
	f.handler.UpdateStatusHandler(rec, withTrace(httptest.NewRequest(http.MethodGet, "/updates/status", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[api.UpdateStatusResponse](t, rec)
	assert.Equal(t, "1h30m0s", res.TimeSinceLastSuccess)
	assert.Nil(t, res.LastAttempt)
	assert.Equal(t, 2, res.DocumentsAdded)
}
