package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/jobModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/queryModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/rag/llm"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
	"github.com/akolanti/ComplianceGPT/internal/retry"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

const NoResultsAnswer = "No relevant regulatory documents were found for this question. " +
	"Try rephrasing it, or trigger an update to fetch the latest IRDAI documents."

const contextSeparator = "\n\n---\n\n"

const answerInstructions = "Answer the question using only the regulatory context above. " +
	"Cite the document name and page for each point you make. " +
	"If the context does not cover the question, say so instead of guessing."

func returnOutput(job jobModel.Job, result queryModel.QueryResult) jobModel.Job {
	job.JobPayload.Answer = result.Answer
	job.JobPayload.Citations = result.Citations
	job.JobPayload.NoResults = result.NoResults
	job.JobPayload.Cached = result.Cached
	job.JobPayload.LatencyMs = result.Latency.Milliseconds()
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	return job
}

func (s *service) executeEmbeddingStep(ctx context.Context, question string) ([]float32, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("query_embedding", time.Since(start)) }()

	var vector []float32
	_, err := retry.Do(ctx, s.embedPolicy, errorModel.IsRetryable, func(ctx context.Context, _ int) error {
		var err error
		vector, err = s.Embedder.Embed(ctx, question)
		return err
	})
	return vector, err
}

func (s *service) executeCacheCheckStep(ctx context.Context, log *logger_i.Logger, queryVector []float32) (vectorDB.CachedAnswer, bool) {
	if !s.cacheAnswer {
		return vectorDB.CachedAnswer{}, false
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("cache_lookup", time.Since(start)) }()

	cached, found, err := s.Cache.Lookup(ctx, queryVector)
	if err != nil {
		log.Warn("answer cache lookup failed", "error", err)
		return vectorDB.CachedAnswer{}, false
	}
	return cached, found
}

func (s *service) executeVectorSearchStep(ctx context.Context, queryVector []float32) ([]documentModel.ScoredChunk, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("vector_search", time.Since(start)) }()

	return s.Store.Search(ctx, queryVector, s.topK)
}

// executeLLMStep retries rate limits and transient failures with exponential
// backoff. Running out of attempts while rate limited is reported as such.
func (s *service) executeLLMStep(ctx context.Context, prompt llm.Prompt) (string, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	var answer string
	attempts, err := retry.Do(ctx, s.llmPolicy, errorModel.IsRetryable, func(ctx context.Context, _ int) error {
		var err error
		answer, err = s.LLM.Complete(ctx, prompt)
		return err
	})
	if err != nil {
		return "", &errorModel.InferenceError{
			RateLimited: errorModel.IsRateLimited(err),
			Attempts:    attempts,
			Err:         err,
		}
	}
	return answer, nil
}

func (s *service) saveToCache(ctx context.Context, log *logger_i.Logger, queryVector []float32, question string, result queryModel.QueryResult) {
	if !s.cacheAnswer {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.Cache.Save(saveCtx, queryVector, vectorDB.CachedAnswer{
		Question:  question,
		Answer:    result.Answer,
		Citations: result.Citations,
	})
	if err != nil {
		log.Warn("Failed to save to cache", "error", err)
	}
}

// buildPrompt lays out the retrieved chunks as labelled context blocks
// followed by the question.
func buildPrompt(base llm.Prompt, question string, matches []documentModel.ScoredChunk) llm.Prompt {
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, fmt.Sprintf("[%s | Page %d]\n%s", sourceName(m.Chunk), m.Chunk.Page, strings.TrimSpace(m.Chunk.Text)))
	}

	var b strings.Builder
	b.WriteString("Regulatory context:\n\n")
	b.WriteString(strings.Join(blocks, contextSeparator))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(answerInstructions)

	prompt := base
	prompt.User = b.String()
	return prompt
}

func sourceName(c documentModel.ChunkRecord) string {
	if c.Source != "" {
		return c.Source
	}
	return c.DocumentID
}

// citationsFrom keeps one citation per (document, page), the best scoring
// one, ordered by score.
func citationsFrom(matches []documentModel.ScoredChunk) []queryModel.Citation {
	type key struct {
		doc  string
		page int
	}
	best := make(map[key]int)
	var citations []queryModel.Citation
	for _, m := range matches {
		k := key{m.Chunk.DocumentID, m.Chunk.Page}
		if i, seen := best[k]; seen {
			if m.Score > citations[i].Score {
				citations[i].Score = m.Score
			}
			continue
		}
		best[k] = len(citations)
		citations = append(citations, queryModel.Citation{
			DocumentID: m.Chunk.DocumentID,
			Source:     sourceName(m.Chunk),
			SourceURL:  m.Chunk.SourceURL,
			Category:   string(m.Chunk.Category),
			Page:       m.Chunk.Page,
			Score:      m.Score,
		})
	}
	sort.SliceStable(citations, func(i, j int) bool { return citations[i].Score > citations[j].Score })
	return citations
}
