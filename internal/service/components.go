// File: internal/service/components.go
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/agent"
	"github.com/xkilldash9x/plusdesk/internal/config"
)

// Components holds the services a command needs and owns their shutdown.
type Components struct {
	Store     schemas.CredentialStore
	Executor  *agent.Executor
	LLM       schemas.LLMClient
	Responder *Responder

	logger     *zap.Logger
	closeStore func()
	llmClosed  bool
}

// NewComponents opens the credential store and builds the executor. With
// withLLM set, the producer client and the responder are built as well.
func NewComponents(ctx context.Context, cfg config.Interface, logger *zap.Logger, withLLM bool) (*Components, error) {
	credStore, closeStore, err := InitializeCredentialStore(ctx, cfg.Database(), logger)
	if err != nil {
		return nil, err
	}

	c := &Components{
		Store:      credStore,
		Executor:   agent.NewExecutor(credStore, cfg.Executor(), logger),
		logger:     logger,
		closeStore: closeStore,
	}

	if withLLM {
		llm, err := InitializeLLMClient(ctx, cfg.Agent(), logger)
		if err != nil {
			c.Shutdown()
			return nil, err
		}
		c.LLM = llm
		c.Responder = NewResponder(llm, c.Executor, cfg.Agent(), logger)
	}
	return c, nil
}

// Shutdown releases resources in reverse order of creation. Safe to call more
// than once.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")

	if c.LLM != nil && !c.llmClosed {
		c.llmClosed = true
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client.", zap.Error(err))
		}
	}
	if c.closeStore != nil {
		c.closeStore()
		c.closeStore = nil
	}
	logger.Debug("Components shutdown complete.")
}
