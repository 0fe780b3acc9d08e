package openaiEmbedding

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/customHttpClient"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/rag/embedding"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const serviceName = "openai-embedding"

// the embeddings endpoint accepts up to 2048 inputs; stay well below it
const maxBatch = 256

type client struct {
	api       openai.Client
	model     string
	dimension int
	logger    *logger_i.Logger
}

// New builds an embedder for any OpenAI-compatible endpoint. Retries are
// left to the caller so the backoff policy stays in one place.
func New(settings config.ProviderSettings) embedding.Embedder {
	opts := []option.RequestOption{
		option.WithAPIKey(settings.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(customHttpClient.NewClient(0)),
	}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}
	if settings.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(settings.Timeout))
	}
	model := settings.Model
	if model == "" {
		model = config.OpenAIEmbeddingModel
	}
	return &client{
		api:       openai.NewClient(opts...),
		model:     model,
		dimension: settings.Dimension,
		logger:    logger_i.NewLogger("openai_embedding"),
	}
}

func (c *client) Dimension() int {
	return c.dimension
}

func (c *client) Embed(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatch {
		end := min(i+maxBatch, len(texts))
		vectors, err := c.embed(ctx, texts[i:end])
		if err != nil {
			c.logger.ForContext(ctx).Error("embedding batch failed", "error", err, "offset", i)
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: c.model,
	}
	if c.dimension > 0 {
		params.Dimensions = openai.Int(int64(c.dimension))
	}

	start := time.Now()
	resp, err := c.api.Embeddings.New(ctx, params)
	metrics.CaptureExecutionMetrics(serviceName, time.Since(start))
	if err != nil {
		return nil, classify(ctx, err)
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors := make([][]float32, len(data))
	for i, d := range data {
		v := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			v[j] = float32(x)
		}
		vectors[i] = v
	}
	if err := embedding.CheckBatch(serviceName, len(texts), c.dimension, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func classify(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return errorModel.FromStatusCode(serviceName, apiErr.StatusCode, err)
	}
	return errorModel.FromTransport(ctx, serviceName, err)
}
