// internal/llmclient/gemini_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/config"
)

// contentGenerator is the slice of the genai Models service the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements schemas.LLMClient on the Google GenAI SDK.
type GeminiClient struct {
	models  contentGenerator
	config  config.LLMModelConfig
	limiter *rate.Limiter
	logger  *zap.Logger

	backoffFactory func() backoff.BackOff
}

var _ schemas.LLMClient = (*GeminiClient)(nil)

// NewGeminiClient initializes the client against the Gemini API backend.
func NewGeminiClient(ctx context.Context, cfg config.LLMModelConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiClient(client.Models, cfg, logger), nil
}

func newGeminiClient(models contentGenerator, cfg config.LLMModelConfig, logger *zap.Logger) *GeminiClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	maxElapsed := cfg.MaxElapsed
	return &GeminiClient{
		models:  models,
		config:  cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("llm_client.gemini"),
		backoffFactory: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

// Generate sends the prompts to the model and returns the concatenated text
// of the first candidate. Transient API failures are retried.
func (c *GeminiClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait failed: %w", err)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.UserPrompt, genai.RoleUser)}
	genConfig := c.buildGenerateConfig(req)

	var responseContent string
	operation := func() error {
		callCtx := ctx
		if c.config.APITimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.config.APITimeout)
			defer cancel()
		}

		startTime := time.Now()
		resp, err := c.models.GenerateContent(callCtx, c.config.Model, contents, genConfig)
		duration := time.Since(startTime)
		if err != nil {
			return c.classifyAPIError(err)
		}

		text, err := extractText(resp)
		if err != nil {
			return err
		}

		fields := []zap.Field{zap.Duration("duration", duration), zap.String("model", c.config.Model)}
		if usage := resp.UsageMetadata; usage != nil {
			fields = append(fields,
				zap.Int32("prompt_tokens", usage.PromptTokenCount),
				zap.Int32("completion_tokens", usage.CandidatesTokenCount),
				zap.Int32("total_tokens", usage.TotalTokenCount),
			)
		}
		c.logger.Info("LLM generation complete (Gemini)", fields...)

		responseContent = text
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.backoffFactory(), ctx)); err != nil {
		return "", err
	}
	return responseContent, nil
}

// Close is a no-op; the GenAI client holds no resources that need releasing.
func (c *GeminiClient) Close() error { return nil }

func (c *GeminiClient) buildGenerateConfig(req schemas.GenerationRequest) *genai.GenerateContentConfig {
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Options.Temperature)),
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	topP := c.config.TopP
	if req.Options.TopP > 0 {
		topP = float32(req.Options.TopP)
	}
	if topP > 0 {
		genConfig.TopP = genai.Ptr(topP)
	}
	topK := c.config.TopK
	if req.Options.TopK > 0 {
		topK = req.Options.TopK
	}
	if topK > 0 {
		genConfig.TopK = genai.Ptr(float32(topK))
	}
	if c.config.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(c.config.MaxTokens)
	}
	if req.Options.ForceJSONFormat {
		genConfig.ResponseMIMEType = "application/json"
	}
	return genConfig
}

// extractText joins the text parts of the first candidate. Blocked or empty
// responses are permanent failures.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", backoff.Permanent(errors.New("gemini API returned an empty response"))
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", backoff.Permanent(fmt.Errorf("gemini API blocked the prompt (Reason: %s)", fb.BlockReason))
	}
	if len(resp.Candidates) == 0 {
		return "", backoff.Permanent(errors.New("gemini API returned no candidates"))
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason == genai.FinishReasonSafety || candidate.FinishReason == genai.FinishReasonBlocklist {
			return "", backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
		}
		return "", fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// classifyAPIError marks everything but throttling, server errors and
// timeouts as permanent.
func (c *GeminiClient) classifyAPIError(err error) error {
	code := 0
	switch apiErr := err.(type) {
	case genai.APIError:
		code = apiErr.Code
	case *genai.APIError:
		code = apiErr.Code
	}

	switch {
	case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
		c.logger.Warn("Transient Gemini API error, retrying...", zap.Int("status", code), zap.Error(err))
		return err
	case code != 0:
		c.logger.Error("Gemini API returned error status", zap.Int("status", code), zap.Error(err))
		return backoff.Permanent(fmt.Errorf("gemini API error: %w", err))
	case errors.Is(err, context.DeadlineExceeded):
		c.logger.Warn("Gemini API call timed out, retrying...", zap.Error(err))
		return err
	case errors.Is(err, context.Canceled):
		return backoff.Permanent(err)
	default:
		c.logger.Warn("Network error during LLM request, retrying...", zap.Error(err))
		return fmt.Errorf("failed to execute Gemini request: %w", err)
	}
}
