package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/adapter"
	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/rag/embedding"
	"github.com/akolanti/ComplianceGPT/internal/rag/llm"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
	"github.com/akolanti/ComplianceGPT/internal/retry"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

// Service is what the handlers, the worker pool and the CLI call. The
// retrieval and model clients stay behind it.
type Service interface {
	Answer(ctx context.Context, question string) (queryModel.QueryResult, error)
	ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job
	IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job
}

// Ingester is the part of the ingestion pipeline the service needs.
type Ingester interface {
	Ingest(ctx context.Context, record documentModel.DocumentRecord) (int, error)
}

type Dependencies struct {
	Store    vectorDB.Store
	Cache    vectorDB.AnswerCache
	LLM      llm.Provider
	Embedder embedding.Embedder
	Ingester Ingester
	Tracker  documentModel.Tracker
}

type service struct {
	Dependencies
	topK        int
	timeout     time.Duration
	cacheAnswer bool
	prompt      llm.Prompt
	llmPolicy   retry.Policy
	embedPolicy retry.Policy
	logger      *logger_i.Logger
}

func NewService(deps Dependencies, llmSettings config.LLMSettings, query config.QuerySettings) Service {
	logger := logger_i.NewLogger("RAG Service")

	topK := query.TopK
	if topK <= 0 {
		topK = config.QueryTopK
	}
	attempts := llmSettings.MaxAttempts
	if attempts <= 0 {
		attempts = config.LLMMaxAttempts
	}
	base := llmSettings.BackoffBase
	if base <= 0 {
		base = config.LLMBackoffBase
	}
	system := llmSettings.SystemPrompt
	if system == "" {
		system = config.ModelContext
	}
	maxTokens := llmSettings.MaxTokens
	if maxTokens <= 0 {
		maxTokens = config.LLMMaxTokens
	}

	return &service{
		Dependencies: deps,
		topK:         topK,
		timeout:      query.Timeout,
		cacheAnswer:  query.CacheAnswer && deps.Cache != nil,
		prompt: llm.Prompt{
			System:      system,
			MaxTokens:   maxTokens,
			Temperature: llmSettings.Temperature,
		},
		llmPolicy: retry.Policy{
			MaxAttempts: attempts,
			Base:        base,
			Max:         30 * time.Second,
			Jitter:      0.1,
			Logger:      logger,
		},
		embedPolicy: retry.Policy{
			MaxAttempts: config.EmbedMaxAttempts,
			Base:        time.Second,
			Max:         10 * time.Second,
			Jitter:      0.1,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Answer runs retrieval and generation for one question. Finding nothing
// relevant is a normal result with NoResults set.
func (s *service) Answer(ctx context.Context, question string) (queryModel.QueryResult, error) {
	start := time.Now()
	question = strings.TrimSpace(question)
	if question == "" {
		return queryModel.QueryResult{}, errorModel.ErrEmptyQuestion
	}
	log := s.logger.ForContext(ctx)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.answer(ctx, log, question)
	result.Question = question
	result.Latency = time.Since(start)
	metrics.CaptureJobMetrics(queryOutcome(result, err), result.Latency)
	if err != nil {
		log.Error("answering failed", "error", err, "took", result.Latency)
		return result, err
	}
	log.Info("question answered", "citations", len(result.Citations), "noResults", result.NoResults, "cached", result.Cached, "took", result.Latency)
	return result, nil
}

func (s *service) answer(ctx context.Context, log *logger_i.Logger, question string) (queryModel.QueryResult, error) {
	queryVector, err := s.executeEmbeddingStep(ctx, question)
	if err != nil {
		return queryModel.QueryResult{}, &errorModel.RetrievalError{Stage: "embed", Err: err}
	}

	if cached, found := s.executeCacheCheckStep(ctx, log, queryVector); found {
		return queryModel.QueryResult{Answer: cached.Answer, Citations: cached.Citations, Cached: true}, nil
	}

	matches, err := s.executeVectorSearchStep(ctx, queryVector)
	if err != nil {
		return queryModel.QueryResult{}, &errorModel.RetrievalError{Stage: "search", Err: err}
	}
	if len(matches) == 0 {
		return queryModel.QueryResult{Answer: NoResultsAnswer, NoResults: true, Citations: []queryModel.Citation{}}, nil
	}

	answer, err := s.executeLLMStep(ctx, buildPrompt(s.prompt, question, matches))
	if err != nil {
		return queryModel.QueryResult{}, err
	}

	result := queryModel.QueryResult{Answer: answer, Citations: citationsFrom(matches)}
	s.saveToCache(ctx, log, queryVector, question, result)
	return result, nil
}

func (s *service) ProcessRequest(ctx context.Context, job jobModel.Job) jobModel.Job {
	job.CurrentStep = jobModel.UserQueryInit

	result, err := s.Answer(ctx, job.JobPayload.Question)
	if err != nil {
		return s.jobError(job, err)
	}
	return returnOutput(job, result)
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) jobModel.Job {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()
	job.CurrentStep = jobModel.IngestProcessing

	if s.Ingester == nil || s.Tracker == nil {
		return s.jobError(job, errors.New("ingestion is not configured"))
	}
	record, found, err := s.Tracker.Get(ctx, job.JobPayload.DocumentID)
	if err != nil {
		return s.jobError(job, err)
	}
	if !found {
		return s.jobError(job, errorModel.ErrNotFound)
	}

	chunks, err := s.Ingester.Ingest(ctx, record)
	if err != nil {
		return s.jobError(job, err)
	}
	job.JobPayload.Chunks = chunks
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

func (s *service) jobError(job jobModel.Job, err error) jobModel.Job {
	s.logger.Error("job failed", "jobId", job.Id, "traceId", job.TraceId, "error", err)
	job.Error = adapter.ToJobError(err, job.TraceId)
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

func queryOutcome(result queryModel.QueryResult, err error) string {
	var inference *errorModel.InferenceError
	switch {
	case err == nil && result.Cached:
		return "cached"
	case err == nil && result.NoResults:
		return "no_results"
	case err == nil:
		return "answered"
	case errors.As(err, &inference) && inference.RateLimited:
		return "rate_limited"
	}
	return "error"
}
