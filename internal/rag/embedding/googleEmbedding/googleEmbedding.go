package googleEmbedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/rag/embedding"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"google.golang.org/genai"
)

const serviceName = "gemini-embedding"

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var initErr error

type client struct {
	genAi     *genai.Client
	model     string
	dimension int32
	timeout   time.Duration
}

func newGoogleEmbedder(ctx context.Context, settings config.ProviderSettings) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: settings.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Google Embedding client", "error", err)
		initErr = err
		return
	}
	embeddingClient = &client{
		genAi:     c,
		model:     settings.Model,
		dimension: int32(settings.Dimension),
		timeout:   settings.Timeout,
	}
	logger.Info("Google Embedding client created", "model", settings.Model, "dimension", settings.Dimension)
}

func GetGoogleEmbeddingClient(ctx context.Context, settings config.ProviderSettings) (embedding.Embedder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, settings)
	})

	if embeddingClient == nil {
		if initErr == nil {
			initErr = errors.New("google embedding client unavailable")
		}
		return nil, initErr
	}
	return embeddingClient, nil
}

func (c *client) Dimension() int {
	return int(c.dimension)
}

// Embed embeds a search query. Queries and documents use different task
// types so the model can place them asymmetrically.
func (c *client) Embed(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{query}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) EmbedBatch(ctx context.Context, chunks []string) ([][]float32, error) {
	log := logger.ForContext(ctx)

	out := make([][]float32, 0, len(chunks))
	for _, batch := range splitBatches(chunks, maxBatch) {
		vectors, err := c.embed(ctx, batch, "RETRIEVAL_DOCUMENT")
		if err != nil {
			log.Error("Error getting Embeddings from Google", "error", err, "batch", len(batch))
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *client) embed(parent context.Context, texts []string, taskType string) ([][]float32, error) {
	ctx := parent
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := c.genAi.Models.EmbedContent(ctx, c.model, getContent(texts), &genai.EmbedContentConfig{
		OutputDimensionality: &c.dimension,
		TaskType:             taskType,
	})
	metrics.CaptureExecutionMetrics(serviceName, time.Since(start))
	if err != nil {
		return nil, classify(parent, err)
	}

	vectors := make([][]float32, 0, len(result.Embeddings))
	for _, e := range result.Embeddings {
		vectors = append(vectors, e.Values)
	}
	if err := embedding.CheckBatch(serviceName, len(texts), int(c.dimension), vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}
