// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/config"
	"github.com/xkilldash9x/plusdesk/internal/llmclient"
	"github.com/xkilldash9x/plusdesk/internal/store"
)

// InitializeCredentialStore opens the configured credential store. The
// cleanup func must be called at shutdown.
func InitializeCredentialStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (schemas.CredentialStore, func(), error) {
	logger.Info("Initializing credential store.", zap.String("driver", cfg.Driver))
	credStore, cleanup, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize credential store: %w", err)
	}
	return credStore, cleanup, nil
}

// InitializeLLMClient creates a new LLM client based on the configuration.
func InitializeLLMClient(ctx context.Context, cfg config.AgentConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	llmClient, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize LLM client.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return llmClient, nil
}
