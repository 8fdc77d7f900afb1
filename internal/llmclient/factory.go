// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/config"
)

// NewClient creates the structured-response producer named by the configuration.
func NewClient(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(ctx, cfg.LLM, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.LLM.Provider, config.ProviderGemini)
	}
}
