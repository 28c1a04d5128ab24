package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"loom/internal/logging"
	"loom/internal/orchestrator"
	"loom/internal/store"
	"loom/internal/testsupport"
)

func newOrchestrator(t *testing.T, opts ...testsupport.ConfigOption) *orchestrator.Orchestrator {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	orch, err := orchestrator.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	t.Cleanup(orch.Cleanup)
	return orch
}

func TestCleanupIsIdempotent(t *testing.T) {
	orch := newOrchestrator(t)

	// Repeated cleanup on a fresh orchestrator must be a no-op, never an
	// error, and must leave the handle released after each call.
	for i := 0; i < 3; i++ {
		orch.Cleanup()
		if orch.Store() != nil {
			t.Fatalf("cleanup %d: expected released store handle", i+1)
		}
	}
}

func TestRunAfterCleanupFails(t *testing.T) {
	orch := newOrchestrator(t)
	orch.Cleanup()

	exec := orchestrator.ExecutorFunc(func(ctx context.Context, item *store.Item) (orchestrator.Outcome, error) {
		return orchestrator.OutcomeSuccess, nil
	})
	if _, err := orch.Run(context.Background(), exec); err == nil {
		t.Fatal("expected error running a cleaned-up orchestrator")
	}
}

func TestNewFailsWhenWorkspaceLockHeld(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := orchestrator.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	t.Cleanup(first.Cleanup)

	if _, err := orchestrator.New(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected second orchestrator on the same workspace to fail")
	}

	first.Cleanup()
	second, err := orchestrator.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("expected lock to be reacquirable after cleanup: %v", err)
	}
	second.Cleanup()
}

func TestRunDrainsQueueInPriorityOrder(t *testing.T) {
	orch := newOrchestrator(t, testsupport.WithMaxConcurrency(1))
	testsupport.SeedItems(t, orch.Store(), 5)

	var mu sync.Mutex
	var order []int64
	exec := orchestrator.ExecutorFunc(func(ctx context.Context, item *store.Item) (orchestrator.Outcome, error) {
		mu.Lock()
		order = append(order, item.ID)
		mu.Unlock()
		return orchestrator.OutcomeSuccess, nil
	})

	summary, err := orch.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Completed != 5 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %#v", summary)
	}

	// A single worker claims strictly by ascending priority.
	for i := 1; i < len(order); i++ {
		if order[i] < order[i-1] {
			t.Fatalf("claims out of priority order: %v", order)
		}
	}

	stats, err := orch.Store().Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Passed != 5 || stats.Eligible != 0 || stats.InProgress != 0 {
		t.Fatalf("unexpected stats after drain: %#v", stats)
	}
}

func TestRunRequeuesRetryableFailures(t *testing.T) {
	orch := newOrchestrator(t, testsupport.WithMaxConcurrency(2))
	items := testsupport.SeedItems(t, orch.Store(), 4)

	var retried atomic.Bool
	target := items[0].ID
	exec := orchestrator.ExecutorFunc(func(ctx context.Context, item *store.Item) (orchestrator.Outcome, error) {
		if item.ID == target && retried.CompareAndSwap(false, true) {
			return orchestrator.OutcomeRetry, errors.New("transient failure")
		}
		return orchestrator.OutcomeSuccess, nil
	})

	summary, err := orch.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected 1 requeued item, got %d", summary.Skipped)
	}
	if summary.Completed != 4 {
		t.Fatalf("expected all 4 items completed after requeue, got %d", summary.Completed)
	}

	item, err := orch.Store().Get(context.Background(), target)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !item.Passes {
		t.Fatal("requeued item must complete on its second claim")
	}
}

func TestRunLeavesFatalFailuresInProgress(t *testing.T) {
	orch := newOrchestrator(t, testsupport.WithMaxConcurrency(2))
	items := testsupport.SeedItems(t, orch.Store(), 3)

	target := items[1].ID
	exec := orchestrator.ExecutorFunc(func(ctx context.Context, item *store.Item) (orchestrator.Outcome, error) {
		if item.ID == target {
			return orchestrator.OutcomeFatal, errors.New("broken beyond retry")
		}
		return orchestrator.OutcomeSuccess, nil
	})

	summary, err := orch.Run(context.Background(), exec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Failed != 1 || summary.Completed != 2 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0] != "broken beyond retry" {
		t.Fatalf("expected failure detail in summary, got %v", summary.Errors)
	}

	// The failed item stays claimed on purpose: a visible stuck marker.
	stuck, err := orch.Store().InProgress(context.Background())
	if err != nil {
		t.Fatalf("InProgress failed: %v", err)
	}
	if len(stuck) != 1 || stuck[0].ID != target {
		t.Fatalf("expected item %d stuck in progress, got %#v", target, stuck)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const workers = 2
	orch := newOrchestrator(t, testsupport.WithMaxConcurrency(workers))
	testsupport.SeedItems(t, orch.Store(), 8)

	var active atomic.Int64
	var peak atomic.Int64
	exec := orchestrator.ExecutorFunc(func(ctx context.Context, item *store.Item) (orchestrator.Outcome, error) {
		current := active.Add(1)
		defer active.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return orchestrator.OutcomeSuccess, nil
	})

	if _, err := orch.Run(context.Background(), exec); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := peak.Load(); got > workers {
		t.Fatalf("expected at most %d concurrent executions, observed %d", workers, got)
	}
}

func TestRunStopsClaimingOnCancel(t *testing.T) {
	orch := newOrchestrator(t, testsupport.WithMaxConcurrency(1))
	testsupport.SeedItems(t, orch.Store(), 5)

	ctx, cancel := context.WithCancel(context.Background())

	var executed atomic.Int64
	exec := orchestrator.ExecutorFunc(func(execCtx context.Context, item *store.Item) (orchestrator.Outcome, error) {
		executed.Add(1)
		cancel()
		return orchestrator.OutcomeSuccess, nil
	})

	summary, err := orch.Run(ctx, exec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The in-flight item finishes and its outcome is recorded; no further
	// claims are issued after cancellation.
	if executed.Load() != 1 {
		t.Fatalf("expected exactly 1 execution before shutdown, got %d", executed.Load())
	}
	if summary.Completed != 1 {
		t.Fatalf("expected the in-flight outcome recorded, got %#v", summary)
	}

	stats, err := orch.Store().Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Passed != 1 || stats.Eligible != 4 {
		t.Fatalf("unexpected stats after cancel: %#v", stats)
	}
}

func TestRunLetsInFlightExecutorFinishAfterCancel(t *testing.T) {
	orch := newOrchestrator(t, testsupport.WithMaxConcurrency(1))
	testsupport.SeedItems(t, orch.Store(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	exec := orchestrator.ExecutorFunc(func(execCtx context.Context, item *store.Item) (orchestrator.Outcome, error) {
		cancel()
		// Work already dispatched keeps running after shutdown is requested;
		// a canceled execution context would kill an external command
		// mid-work and strand the item in progress.
		select {
		case <-execCtx.Done():
			return orchestrator.OutcomeFatal, execCtx.Err()
		case <-time.After(50 * time.Millisecond):
			return orchestrator.OutcomeSuccess, nil
		}
	})

	summary, err := orch.Run(ctx, exec)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Failed != 0 || summary.Completed != 1 {
		t.Fatalf("in-flight execution must finish and succeed after cancel: %#v", summary)
	}

	stats, err := orch.Store().Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.InProgress != 0 {
		t.Fatalf("no items may be stranded in progress by shutdown: %#v", stats)
	}
	if stats.Passed != 1 || stats.Eligible != 1 {
		t.Fatalf("expected one completed and one untouched item: %#v", stats)
	}
}

func TestRunRequiresExecutor(t *testing.T) {
	orch := newOrchestrator(t)
	if _, err := orch.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil executor")
	}
}
