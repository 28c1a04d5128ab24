package orchestrator

import (
	"context"

	"loom/internal/store"
)

// Outcome classifies the result of executing a claimed work item.
type Outcome int

const (
	// OutcomeSuccess marks the item done; it is never claimable again.
	OutcomeSuccess Outcome = iota
	// OutcomeRetry requeues the item at the lowest scheduling priority.
	OutcomeRetry
	// OutcomeFatal leaves the item in progress as a visible stuck marker
	// for operator inspection.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Executor performs the actual work for a claimed item. Execution happens
// outside any database transaction, so a long-running executor never holds a
// write lock. The returned error carries detail for Retry and Fatal outcomes.
type Executor interface {
	Execute(ctx context.Context, item *store.Item) (Outcome, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, item *store.Item) (Outcome, error)

func (f ExecutorFunc) Execute(ctx context.Context, item *store.Item) (Outcome, error) {
	return f(ctx, item)
}
