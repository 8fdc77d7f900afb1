// internal/agent/errors.go
package agent

import (
	"errors"
	"fmt"
)

// ErrorCode is a string type used for structured error reporting from the
// action executor.
type ErrorCode string

const (
	// ErrCodeNotFound means a referenced account does not exist. Retrying
	// without new input cannot help; the username is surfaced to the user.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeStorage covers every transaction failure. The store is left
	// unchanged unless the error is ambiguous.
	ErrCodeStorage ErrorCode = "STORAGE_FAILURE"
	// ErrCodeInvalidAction is returned for action values the executor cannot run.
	ErrCodeInvalidAction ErrorCode = "INVALID_ACTION"
)

// Sentinels matched by *ExecError through errors.Is.
var (
	ErrNotFound      = errors.New("account not found")
	ErrStorage       = errors.New("storage failure")
	ErrInvalidAction = errors.New("invalid action")
)

// ExecError is the only error type returned by Executor.Execute.
type ExecError struct {
	Code ErrorCode
	// Username is set for ErrCodeNotFound.
	Username string
	Err      error

	ambiguous bool
}

func (e *ExecError) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s: %q", ErrNotFound.Error(), e.Username)
	case ErrCodeInvalidAction:
		return fmt.Sprintf("%s: %v", ErrInvalidAction.Error(), e.Err)
	default:
		if e.ambiguous {
			return fmt.Sprintf("%s (outcome unknown): %v", ErrStorage.Error(), e.Err)
		}
		return fmt.Sprintf("%s: %v", ErrStorage.Error(), e.Err)
	}
}

func (e *ExecError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's code.
func (e *ExecError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == ErrCodeNotFound
	case ErrStorage:
		return e.Code == ErrCodeStorage
	case ErrInvalidAction:
		return e.Code == ErrCodeInvalidAction
	}
	return false
}

// Ambiguous reports whether the swap may or may not have been committed. The
// caller must check the store before retrying.
func (e *ExecError) Ambiguous() bool { return e.ambiguous }
