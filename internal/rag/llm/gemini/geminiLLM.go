package gemini

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/rag/llm"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "gemini"

type llmClient struct {
	client    *genai.Client
	modelName string
	timeout   time.Duration
}

var logger *logger_i.Logger
var geminiClient *llmClient
var initErr error
var once sync.Once

func GetGeminiClient(ctx context.Context, settings config.ProviderSettings) (llm.Provider, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		newGeminiClient(ctx, settings)
	})

	if geminiClient == nil {
		if initErr == nil {
			initErr = errors.New("gemini client unavailable")
		}
		return nil, initErr
	}
	return geminiClient, nil
}

func newGeminiClient(ctx context.Context, settings config.ProviderSettings) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: settings.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		logger.Error("Error creating Gemini client", "error", err)
		initErr = err
		return
	}
	model := settings.Model
	if model == "" {
		model = config.GeminiModelName
	}
	geminiClient = &llmClient{client: c, modelName: model, timeout: settings.Timeout}
	logger.Info("Gemini client created", "model", model)
}

func (c *llmClient) Complete(parent context.Context, prompt llm.Prompt) (string, error) {
	log := logger.ForContext(parent)
	ctx := parent
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.timeout)
		defer cancel()
	}

	contentConfig := &genai.GenerateContentConfig{}
	if prompt.System != "" {
		contentConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: prompt.System}},
		}
	}
	if prompt.MaxTokens > 0 {
		contentConfig.MaxOutputTokens = int32(prompt.MaxTokens)
	}
	temperature := float32(prompt.Temperature)
	contentConfig.Temperature = &temperature

	start := time.Now()
	result, err := c.client.Models.GenerateContent(ctx, c.modelName, genai.Text(prompt.User), contentConfig)
	metrics.CaptureExecutionMetrics(serviceName, time.Since(start))
	if err != nil {
		log.Warn("Gemini call failed", "error", err)
		return "", classify(parent, err)
	}

	answer := strings.TrimSpace(result.Text())
	if answer == "" {
		return "", &errorModel.ServiceError{Service: serviceName, Retryable: true, Err: errors.New("empty completion")}
	}
	return answer, nil
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
			se.RateLimited = true
		case codes.Unavailable, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
			se.Retryable = true
		}
		return se
	}
	return errorModel.FromTransport(ctx, serviceName, err)
}
