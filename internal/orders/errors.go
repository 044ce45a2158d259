package orders

import "errors"

var (
	ErrNotFound = errors.New("order not found")

	// ErrValidation wraps malformed-request rejections; always non-retryable.
	ErrValidation = errors.New("invalid order")

	// errIdemConflict: a concurrent create with the same idempotency key won
	// the insert race; the caller re-reads the winner.
	errIdemConflict = errors.New("idempotency key conflict")
)
