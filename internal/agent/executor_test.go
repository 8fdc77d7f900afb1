package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/config"
	"github.com/xkilldash9x/plusdesk/internal/store"
)

func testExecutorConfig() config.ExecutorConfig {
	return config.ExecutorConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		MaxElapsed:     time.Second,
	}
}

func setupExecutor(t *testing.T, cfg config.ExecutorConfig) (*Executor, *MockCredentialStore, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	mockStore := new(MockCredentialStore)
	t.Cleanup(func() { mockStore.AssertExpectations(t) })
	return NewExecutor(mockStore, cfg, zap.New(core)), mockStore, logs
}

func serializationFailure() error {
	return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
}

func TestExecute_UnitActions(t *testing.T) {
	for _, action := range []schemas.Action{schemas.NullAction(), schemas.AbortAction()} {
		t.Run(action.Kind.String(), func(t *testing.T) {
			exec, mockStore, _ := setupExecutor(t, testExecutorConfig())

			require.NoError(t, exec.Execute(context.Background(), action))
			mockStore.AssertNotCalled(t, "SwapCredentials", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestExecute_TransferPlus(t *testing.T) {
	ctx := context.Background()

	t.Run("success logs both usernames", func(t *testing.T) {
		exec, mockStore, logs := setupExecutor(t, testExecutorConfig())
		mockStore.On("SwapCredentials", ctx, "alice", "bob").Return(nil).Once()

		require.NoError(t, exec.Execute(ctx, schemas.TransferPlusAction("alice", "bob")))

		entries := logs.FilterMessage("Transferred plus").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "alice", fields["old_username"])
		assert.Equal(t, "bob", fields["new_username"])
		assert.Equal(t, zap.DebugLevel, entries[0].Level)
	})

	t.Run("missing account is not found and not retried", func(t *testing.T) {
		exec, mockStore, _ := setupExecutor(t, testExecutorConfig())
		mockStore.On("SwapCredentials", ctx, "alice", "ghost").
			Return(fmt.Errorf("lookup: %w", &store.AccountNotFoundError{Username: "ghost"})).Once()

		err := exec.Execute(ctx, schemas.TransferPlusAction("alice", "ghost"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NotErrorIs(t, err, ErrStorage)

		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, ErrCodeNotFound, execErr.Code)
		assert.Equal(t, "ghost", execErr.Username)
		assert.Contains(t, err.Error(), `"ghost"`)
	})

	t.Run("generic storage failure", func(t *testing.T) {
		exec, mockStore, _ := setupExecutor(t, testExecutorConfig())
		cause := errors.New("connection refused")
		mockStore.On("SwapCredentials", ctx, "alice", "bob").Return(cause).Once()

		err := exec.Execute(ctx, schemas.TransferPlusAction("alice", "bob"))
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, cause)

		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.False(t, execErr.Ambiguous())
	})

	t.Run("same username is rejected before the store", func(t *testing.T) {
		exec, mockStore, _ := setupExecutor(t, testExecutorConfig())

		err := exec.Execute(ctx, schemas.TransferPlusAction("alice", "alice"))
		assert.ErrorIs(t, err, ErrInvalidAction)
		mockStore.AssertNotCalled(t, "SwapCredentials", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed action values are invalid", func(t *testing.T) {
		exec, mockStore, _ := setupExecutor(t, testExecutorConfig())

		err := exec.Execute(ctx, schemas.Action{Kind: schemas.ActionTransferPlus})
		assert.ErrorIs(t, err, ErrInvalidAction)
		err = exec.Execute(ctx, schemas.Action{Kind: "Refund"})
		assert.ErrorIs(t, err, ErrInvalidAction)
		mockStore.AssertNotCalled(t, "SwapCredentials", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestExecute_RetryPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("retryable conflicts are replayed until success", func(t *testing.T) {
		exec, mockStore, logs := setupExecutor(t, testExecutorConfig())
		mockStore.On("SwapCredentials", ctx, "alice", "bob").Return(serializationFailure()).Twice()
		mockStore.On("SwapCredentials", ctx, "alice", "bob").Return(nil).Once()

		require.NoError(t, exec.Execute(ctx, schemas.TransferPlusAction("alice", "bob")))
		assert.Equal(t, 2, logs.FilterMessage("Credential swap conflicted, retrying").Len())
	})

	t.Run("retries are capped", func(t *testing.T) {
		cfg := testExecutorConfig()
		cfg.MaxRetries = 2
		exec, mockStore, _ := setupExecutor(t, cfg)
		mockStore.On("SwapCredentials", ctx, "alice", "bob").Return(serializationFailure()).Times(3)

		err := exec.Execute(ctx, schemas.TransferPlusAction("alice", "bob"))
		assert.ErrorIs(t, err, ErrStorage)
		assert.True(t, store.IsRetryable(err))
	})

	t.Run("zero retries means one attempt", func(t *testing.T) {
		cfg := testExecutorConfig()
		cfg.MaxRetries = 0
		exec, mockStore, _ := setupExecutor(t, cfg)
		mockStore.On("SwapCredentials", ctx, "alice", "bob").Return(serializationFailure()).Once()

		assert.ErrorIs(t, exec.Execute(ctx, schemas.TransferPlusAction("alice", "bob")), ErrStorage)
	})

	t.Run("ambiguous commit is surfaced and not retried", func(t *testing.T) {
		exec, mockStore, logs := setupExecutor(t, testExecutorConfig())
		mockStore.On("SwapCredentials", ctx, "alice", "bob").
			Return(&store.CommitError{Err: errors.New("unexpected EOF")}).Once()

		err := exec.Execute(ctx, schemas.TransferPlusAction("alice", "bob"))
		var execErr *ExecError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, ErrCodeStorage, execErr.Code)
		assert.True(t, execErr.Ambiguous())
		assert.Contains(t, err.Error(), "outcome unknown")
		assert.Equal(t, 1, logs.FilterMessage("Credential swap commit outcome unknown").Len())
	})

	t.Run("conflict reported at commit is retried", func(t *testing.T) {
		exec, mockStore, _ := setupExecutor(t, testExecutorConfig())
		mockStore.On("SwapCredentials", ctx, "alice", "bob").
			Return(&store.CommitError{Err: serializationFailure()}).Once()
		mockStore.On("SwapCredentials", ctx, "alice", "bob").Return(nil).Once()

		require.NoError(t, exec.Execute(ctx, schemas.TransferPlusAction("alice", "bob")))
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cfg := testExecutorConfig()
		cfg.InitialBackoff = time.Hour
		cfg.MaxBackoff = time.Hour
		exec, mockStore, _ := setupExecutor(t, cfg)

		cctx, cancel := context.WithCancel(ctx)
		mockStore.On("SwapCredentials", cctx, "alice", "bob").
			Run(func(mock.Arguments) { cancel() }).
			Return(serializationFailure()).Once()

		err := exec.Execute(cctx, schemas.TransferPlusAction("alice", "bob"))
		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// lockingStore serializes swaps the way a real store's row locks would and
// records the order they were applied in.
type lockingStore struct {
	mu    sync.Mutex
	rows  map[string]int64
	order []string
}

func (s *lockingStore) SwapCredentials(_ context.Context, oldUsername, newUsername string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldID, ok := s.rows[oldUsername]
	if !ok {
		return &store.AccountNotFoundError{Username: oldUsername}
	}
	newID, ok := s.rows[newUsername]
	if !ok {
		return &store.AccountNotFoundError{Username: newUsername}
	}
	s.rows[oldUsername], s.rows[newUsername] = newID, oldID
	s.order = append(s.order, oldUsername+"->"+newUsername)
	return nil
}

func (s *lockingStore) LookupCredential(_ context.Context, username string) (*schemas.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.rows[username]
	if !ok {
		return nil, &store.AccountNotFoundError{Username: username}
	}
	return &schemas.Credential{UserID: id, Username: username}, nil
}

func TestExecute_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	credStore := &lockingStore{rows: map[string]int64{"a": 1, "b": 2, "c": 3, "d": 4}}
	exec := NewExecutor(credStore, testExecutorConfig(), zap.NewNop())

	var g errgroup.Group
	g.Go(func() error { return exec.Execute(context.Background(), schemas.TransferPlusAction("a", "b")) })
	g.Go(func() error { return exec.Execute(context.Background(), schemas.TransferPlusAction("c", "d")) })
	g.Go(func() error { return exec.Execute(context.Background(), schemas.NullAction()) })
	require.NoError(t, g.Wait())

	assert.Equal(t, map[string]int64{"a": 2, "b": 1, "c": 4, "d": 3}, credStore.rows)
	assert.Len(t, credStore.order, 2)
}
