package invclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
)

// CallError classifies one failed attempt against the inventory service.
// Status uses HTTP semantics: 0 means the transport itself failed (treated
// like an upstream 5xx), 4xx is a definitive business rejection.
type CallError struct {
	Status   int
	TimedOut bool
	Msg      string
}

func (e *CallError) Error() string {
	if e.TimedOut {
		return "inventory call timed out: " + e.Msg
	}
	return fmt.Sprintf("inventory call failed (status %d): %s", e.Status, e.Msg)
}

// retryable is the pure retry predicate: timeouts and upstream-unavailable
// outcomes may be retried, definitive business rejections never.
func retryable(err error) bool {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.TimedOut || ce.Status == 0 || ce.Status >= 500
	}
	// Anything unclassified is transport-level trouble.
	return true
}

func classify(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{TimedOut: true, Msg: err.Error()}
	}
	return &CallError{Status: 0, Msg: err.Error()}
}

// Result is what the order side sees from a deduct call. The boolean flags
// mirror the failure taxonomy so callers never have to parse messages.
type Result struct {
	Success          bool
	AlreadyProcessed bool
	TimedOut         bool
	CircuitOpen      bool
	Retryable        bool
	Message          string
	Err              error
	Data             *inventory.DeductResult
}
