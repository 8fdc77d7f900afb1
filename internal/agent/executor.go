// internal/agent/executor.go
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/config"
	"github.com/xkilldash9x/plusdesk/internal/store"
)

// Executor applies parsed actions to the credential store. It holds no
// per-call state and is safe for concurrent use.
type Executor struct {
	store  schemas.CredentialStore
	cfg    config.ExecutorConfig
	logger *zap.Logger
}

// NewExecutor creates an executor over the given store.
func NewExecutor(credStore schemas.CredentialStore, cfg config.ExecutorConfig, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		store:  credStore,
		cfg:    cfg,
		logger: logger.Named("executor"),
	}
}

// Execute performs the side effect of action. Null and Abort never touch the
// store. Every returned error is an *ExecError.
func (e *Executor) Execute(ctx context.Context, action schemas.Action) error {
	switch action.Kind {
	case schemas.ActionNull, schemas.ActionAbort:
		return nil
	case schemas.ActionTransferPlus:
		if err := action.Validate(); err != nil {
			return &ExecError{Code: ErrCodeInvalidAction, Err: err}
		}
		return e.transferPlus(ctx, action.TransferPlus.OldUsername, action.TransferPlus.NewUsername)
	default:
		return &ExecError{Code: ErrCodeInvalidAction, Err: fmt.Errorf("unknown action kind %q", string(action.Kind))}
	}
}

func (e *Executor) transferPlus(ctx context.Context, oldUsername, newUsername string) error {
	if oldUsername == newUsername {
		return &ExecError{
			Code: ErrCodeInvalidAction,
			Err:  fmt.Errorf("cannot transfer %q onto itself", oldUsername),
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := e.store.SwapCredentials(ctx, oldUsername, newUsername)
		if err == nil {
			return nil
		}
		if store.IsRetryable(err) && !store.IsAmbiguous(err) {
			e.logger.Warn("Credential swap conflicted, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(operation, e.newBackOff(ctx)); err != nil {
		return e.classify(err)
	}

	e.logger.Debug("Transferred plus",
		zap.String("old_username", oldUsername),
		zap.String("new_username", newUsername),
		zap.Int("attempts", attempt),
	)
	return nil
}

// newBackOff caps replays at MaxRetries. Zero retries means a single attempt.
func (e *Executor) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if e.cfg.InitialBackoff > 0 {
		exp.InitialInterval = e.cfg.InitialBackoff
	}
	if e.cfg.MaxBackoff > 0 {
		exp.MaxInterval = e.cfg.MaxBackoff
	}
	exp.MaxElapsedTime = e.cfg.MaxElapsed

	retries := e.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

func (e *Executor) classify(err error) error {
	var notFound *store.AccountNotFoundError
	if errors.As(err, &notFound) {
		return &ExecError{Code: ErrCodeNotFound, Username: notFound.Username, Err: err}
	}

	execErr := &ExecError{Code: ErrCodeStorage, Err: err, ambiguous: store.IsAmbiguous(err)}
	if execErr.ambiguous {
		e.logger.Error("Credential swap commit outcome unknown", zap.Error(err))
	}
	return execErr
}
