package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrAccountNotFound matches every *AccountNotFoundError.
	ErrAccountNotFound = errors.New("account not found")
	// ErrDatabaseNotConfigured is returned when the store is opened without a
	// connection string. Callers treat it as fatal.
	ErrDatabaseNotConfigured = errors.New("database is not configured")
)

// AccountNotFoundError names the username that has no credential row.
type AccountNotFoundError struct {
	Username string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrAccountNotFound.Error(), e.Username)
}

func (e *AccountNotFoundError) Is(target error) bool { return target == ErrAccountNotFound }

// CommitError wraps a failed COMMIT. The outcome of the transaction is unknown
// to the client at that point, so it must not be retried blindly.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return fmt.Sprintf("failed to commit transaction: %v", e.Err) }

func (e *CommitError) Unwrap() error { return e.Err }

// PostgreSQL SQLSTATE codes for transient conflicts.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsRetryable reports whether err is a transient conflict after which the
// whole transaction can be replayed from scratch. A conflict reported by the
// server during COMMIT is still retryable: the server answered, and it
// answered with a rollback.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// Extended result codes keep the primary code in the low byte.
		primary := liteErr.Code() & 0xff
		return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
	}
	return false
}

// IsAmbiguous reports whether err leaves the transaction outcome unknown: the
// COMMIT failed without a definite answer from the server (connection lost,
// context cancelled while waiting for the acknowledgement).
func IsAmbiguous(err error) bool {
	var commitErr *CommitError
	if !errors.As(err, &commitErr) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(commitErr.Err, &pgErr) {
		return false
	}
	var liteErr *sqlite.Error
	return !errors.As(commitErr.Err, &liteErr)
}
