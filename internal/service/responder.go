// File: internal/service/responder.go
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/config"
	"github.com/xkilldash9x/plusdesk/internal/llmutil"
)

// ActionExecutor performs the side effect of a parsed action.
type ActionExecutor interface {
	Execute(ctx context.Context, action schemas.Action) error
}

// Reply is what the support channel should do after one interaction.
type Reply struct {
	InteractionID string
	Action        schemas.Action
	// Text is the message to send. Empty when Suppress is set.
	Text string
	// Suppress is true for Abort: nothing is sent back.
	Suppress bool
}

// Responder runs one support interaction: ask the producer, decode its
// structured response, perform the action and hand back the reply.
type Responder struct {
	llm      schemas.LLMClient
	executor ActionExecutor
	cfg      config.AgentConfig
	logger   *zap.Logger
}

// NewResponder wires the pipeline.
func NewResponder(llm schemas.LLMClient, executor ActionExecutor, cfg config.AgentConfig, logger *zap.Logger) *Responder {
	return &Responder{
		llm:      llm,
		executor: executor,
		cfg:      cfg,
		logger:   logger.Named("responder"),
	}
}

// Handle asks the producer for a response to message and processes it.
// Producer, parse and execution failures are returned as errors; none of them
// is turned into reply text.
func (r *Responder) Handle(ctx context.Context, message string) (*Reply, error) {
	id := uuid.NewString()
	logger := r.logger.With(zap.String("interaction_id", id))

	raw, err := r.llm.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: schemas.RenderSchema(),
		UserPrompt:   message,
		Tier:         schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     float64(r.cfg.LLM.Temperature),
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		logger.Error("Producer request failed.", zap.Error(err))
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	return r.process(ctx, id, raw, logger)
}

// HandleRaw processes a producer payload obtained elsewhere.
func (r *Responder) HandleRaw(ctx context.Context, raw string) (*Reply, error) {
	id := uuid.NewString()
	return r.process(ctx, id, raw, r.logger.With(zap.String("interaction_id", id)))
}

func (r *Responder) process(ctx context.Context, id, raw string, logger *zap.Logger) (*Reply, error) {
	if r.cfg.StripCodeFences {
		raw = llmutil.StripCodeFence(raw)
	}

	resp, err := schemas.ParseResponse(raw)
	if err != nil {
		logger.Warn("Producer response rejected.", zap.Error(err))
		return nil, err
	}
	logger.Debug("Producer response decoded.", zap.Stringer("action", resp.Action.Kind))

	if err := r.executor.Execute(ctx, resp.Action); err != nil {
		logger.Error("Action failed.", zap.Stringer("action", resp.Action.Kind), zap.Error(err))
		return nil, err
	}

	return &Reply{
		InteractionID: id,
		Action:        resp.Action,
		Text:          resp.ReplyText(),
		Suppress:      !resp.ShouldReply(),
	}, nil
}
