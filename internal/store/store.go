package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
)

// rollbackTimeout bounds the deferred rollback, which runs on a context that
// survives cancellation of the caller's context.
const rollbackTimeout = 5 * time.Second

const (
	sqlLookupForUpdate = `
        SELECT user_id, pwdhash
        FROM auth_password
        WHERE username = $1
        FOR UPDATE;
    `
	sqlLookup = `
        SELECT user_id, username, pwdhash
        FROM auth_password
        WHERE username = $1;
    `
	sqlDeletePair = `
        DELETE FROM auth_password
        WHERE username IN ($1, $2);
    `
	sqlInsertPair = `
        INSERT INTO auth_password (user_id, username, pwdhash)
        VALUES ($1, $2, $3), ($4, $5, $6);
    `
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL implementation of schemas.CredentialStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.CredentialStore = (*Store)(nil)

// New creates a store on top of pool. It does not touch the database: the
// pool dials on first use.
func New(pool DBPool, logger *zap.Logger) *Store {
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}
}

// Ping verifies that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// SwapCredentials exchanges the (user_id, pwdhash) pairs of two usernames in a
// single serializable transaction. Both rows are locked before they are
// rewritten so a concurrent swap touching either username waits for this one
// (or fails with a serialization error and can be retried from scratch).
func (s *Store) SwapCredentials(ctx context.Context, oldUsername, newUsername string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	oldCred, err := lookupForUpdate(ctx, tx, oldUsername)
	if err != nil {
		return err
	}
	newCred, err := lookupForUpdate(ctx, tx, newUsername)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, sqlDeletePair, oldUsername, newUsername)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	if tag.RowsAffected() != 2 {
		return fmt.Errorf("expected to delete 2 credentials, deleted %d", tag.RowsAffected())
	}

	if _, err := tx.Exec(ctx, sqlInsertPair,
		newCred.UserID, oldUsername, newCred.PasswordHash,
		oldCred.UserID, newUsername, oldCred.PasswordHash,
	); err != nil {
		return fmt.Errorf("failed to insert swapped credentials: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return &CommitError{Err: err}
	}
	return nil
}

// LookupCredential returns the credential row for username.
func (s *Store) LookupCredential(ctx context.Context, username string) (*schemas.Credential, error) {
	var c schemas.Credential
	err := s.pool.QueryRow(ctx, sqlLookup, username).Scan(&c.UserID, &c.Username, &c.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &AccountNotFoundError{Username: username}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential %q: %w", username, err)
	}
	return &c, nil
}

func lookupForUpdate(ctx context.Context, tx pgx.Tx, username string) (*schemas.Credential, error) {
	c := schemas.Credential{Username: username}
	err := tx.QueryRow(ctx, sqlLookupForUpdate, username).Scan(&c.UserID, &c.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &AccountNotFoundError{Username: username}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up credential %q: %w", username, err)
	}
	return &c, nil
}

// rollback is deferred after every Begin. After a successful commit it is a
// no-op returning pgx.ErrTxClosed, which is not worth logging.
func (s *Store) rollback(ctx context.Context, tx pgx.Tx) {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := tx.Rollback(rbCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		s.log.Error("Failed to rollback transaction", zap.Error(err))
	}
}
