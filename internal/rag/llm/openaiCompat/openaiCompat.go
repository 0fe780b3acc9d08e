package openaiCompat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/customHttpClient"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/rag/llm"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const serviceName = "openai-compatible"

// client talks to any chat completions endpoint: OpenAI itself or a router
// such as the Hugging Face inference router serving Mistral.
type client struct {
	api    openai.Client
	model  string
	logger *logger_i.Logger
}

func New(settings config.ProviderSettings) llm.Provider {
	baseURL := settings.BaseURL
	model := settings.Model
	if model == "" {
		model = config.OpenAICompatModel
		if baseURL == "" {
			baseURL = config.OpenAICompatBaseURL
		}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(settings.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(customHttpClient.NewClient(0)),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if settings.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(settings.Timeout))
	}
	return &client{
		api:    openai.NewClient(opts...),
		model:  model,
		logger: logger_i.NewLogger("llm_openai"),
	}
}

func (c *client) Complete(ctx context.Context, prompt llm.Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(prompt.Temperature),
	}
	if prompt.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(prompt.MaxTokens))
	}

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, params)
	metrics.CaptureExecutionMetrics(serviceName, time.Since(start))
	if err != nil {
		c.logger.ForContext(ctx).Warn("completion failed", "model", c.model, "error", err)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", errorModel.FromStatusCode(serviceName, apiErr.StatusCode, err)
		}
		return "", errorModel.FromTransport(ctx, serviceName, err)
	}

	if len(resp.Choices) == 0 {
		return "", &errorModel.ServiceError{Service: serviceName, Retryable: true, Err: errors.New("no choices returned")}
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", &errorModel.ServiceError{Service: serviceName, Retryable: true, Err: errors.New("empty completion")}
	}
	return answer, nil
}
