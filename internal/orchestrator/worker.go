package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"loom/internal/logging"
	"loom/internal/store"
)

// Run drives cfg.Workflow.MaxConcurrency workers against the store until no
// claimable work remains or ctx is canceled. Cancellation stops new claim
// attempts; an in-flight executor call is allowed to finish and its outcome
// is recorded before the worker exits.
//
// Contention is handled entirely inside the worker loop and never surfaces
// to the caller. Constraint violations and fatal executor failures appear in
// the returned Summary.
func (o *Orchestrator) Run(ctx context.Context, exec Executor) (Summary, error) {
	if exec == nil {
		return Summary{}, errors.New("work executor is required")
	}

	o.mu.Lock()
	st := o.store
	o.mu.Unlock()
	if st == nil {
		return Summary{}, errors.New("orchestrator store released; construct a new orchestrator")
	}

	workers := o.cfg.MaxConcurrency
	o.logger.Info("run started",
		logging.Int("workers", workers),
		logging.String("database", st.Path()),
	)
	start := time.Now()

	results := &tally{}
	var wg sync.WaitGroup
	wg.Add(workers)
	for slot := 1; slot <= workers; slot++ {
		go func(slot int) {
			defer wg.Done()
			o.runWorker(ctx, st, exec, slot, results)
		}(slot)
	}
	wg.Wait()

	summary := results.summary()
	o.logger.Info("run finished",
		logging.Int("completed", summary.Completed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", time.Since(start)),
	)
	return summary, nil
}

// Worker slot lifecycle: claim the next eligible item by ascending priority,
// dispatch it to the executor, record the outcome, repeat. The slot exits
// when a claim pass finds nothing claimable.
func (o *Orchestrator) runWorker(ctx context.Context, st *store.Store, exec Executor, slot int, results *tally) {
	logger := o.logger.With(logging.Int(logging.FieldWorkerID, slot))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopping: shutdown requested")
			return
		default:
		}

		item, err := o.claimNext(ctx, st)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			results.recordError(err)
			logger.Error("claim pass failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check work-item database access"),
			)
			return
		}
		if item == nil {
			logger.Debug("no claimable items remain; worker exiting")
			return
		}

		o.dispatch(ctx, st, exec, logger, item, results)
	}
}

// claimNext fetches eligible items in ascending priority order, one batch at
// a time, and issues an atomic claim for each until one succeeds. A claim
// that affects no rows means another worker won that item; a lock-timeout
// means a writer held the database too long. Both are expected contention,
// answered by trying the next item rather than retrying the same id.
func (o *Orchestrator) claimNext(ctx context.Context, st *store.Store) (*store.Item, error) {
	batch := o.cfg.ClaimBatchSize
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items, err := st.NextEligible(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, nil
		}
		for _, item := range items {
			claimed, err := st.Claim(ctx, item.ID)
			if err != nil {
				if store.IsContention(err) {
					continue
				}
				return nil, err
			}
			if claimed {
				return item, nil
			}
		}
		// Every claim in a short batch lost, so the queue has been drained
		// out from under us. A full batch may hide more items behind it;
		// fetch the next batch.
		if len(items) < batch {
			return nil, nil
		}
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, st *store.Store, exec Executor, logger *slog.Logger, item *store.Item, results *tally) {
	itemLogger := logger.With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldCorrelationID, uuid.NewString()),
	)
	itemLogger.Info("item claimed",
		logging.String("name", item.Name),
		logging.Int64("priority", item.Priority),
	)

	// Shutdown stops new claims but never interrupts work already handed to
	// the executor: the claim is ours, so the call runs to completion
	// (bounded by the executor's own timeout) and its outcome is recorded.
	execCtx := context.WithoutCancel(ctx)

	start := time.Now()
	outcome, execErr := exec.Execute(execCtx, item)

	recordCtx := execCtx

	switch outcome {
	case OutcomeSuccess:
		if err := st.MarkDone(recordCtx, item.ID); err != nil {
			results.recordError(err)
			itemLogger.Error("failed to record completion", logging.Error(err))
			return
		}
		results.recordCompleted()
		itemLogger.Info("item completed", logging.Duration("elapsed", time.Since(start)))

	case OutcomeRetry:
		if err := st.Skip(recordCtx, item.ID); err != nil {
			results.recordError(err)
			itemLogger.Error("failed to requeue item", logging.Error(err))
			return
		}
		results.recordSkipped()
		itemLogger.Warn("item requeued at lowest priority",
			logging.Error(execErr),
			logging.Duration("elapsed", time.Since(start)),
		)

	default:
		// Fatal: the item stays in progress on purpose so the failure is
		// visible to operators instead of being silently requeued.
		detail := outcome.String()
		if execErr != nil {
			detail = execErr.Error()
		}
		results.recordFailed(detail)
		itemLogger.Error("item failed; left in progress for inspection",
			logging.Error(execErr),
			logging.String(logging.FieldEventType, "executor_fatal"),
			logging.String(logging.FieldErrorHint, "inspect the item, then 'loom queue release' to requeue it"),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}
