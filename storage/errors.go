package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotFound is returned when a referenced model does not exist
	ErrModelNotFound = errors.New("model not found")

	// ErrPolicyNotFound is returned when a referenced policy does not exist
	ErrPolicyNotFound = errors.New("policy not found")

	// ErrNoActivePolicy is returned when no governance policy is active
	ErrNoActivePolicy = errors.New("no active policy")
)

// TransactionError wraps a failed multi-row write. The whole unit of work
// was rolled back; the caller may retry.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed during %s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// Retryable marks this error as safe to retry
func (e *TransactionError) Retryable() bool { return true }

// IsRetryable reports whether err is a rolled-back transaction failure
func IsRetryable(err error) bool {
	var te *TransactionError
	return errors.As(err, &te)
}
