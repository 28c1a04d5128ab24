package orchestrator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/store"
)

// Orchestrator owns the store handle and drives a bounded set of concurrent
// workers against it until no claimable work remains or the caller requests
// shutdown. It does not decide how work is performed; it only sequences
// claim, dispatch, and record-outcome, bounding parallelism.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger

	mu    sync.Mutex
	store *store.Store
	lock  *flock.Flock
}

// Summary reports what a Run accomplished.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Errors    []string
}

// New constructs an orchestrator: it opens the shared store (a connection
// configuration failure aborts construction, there is no degraded mode) and
// takes an advisory lock on the workspace so two orchestrator processes do
// not drain the same queue.
func New(cfg *config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("orchestrator requires a config")
	}
	logger = logging.NewComponentLogger(logger, "orchestrator")

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	st.SetLogger(logger)

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("acquire workspace lock: %w", err)
	}
	if !ok {
		_ = st.Close()
		return nil, fmt.Errorf("another orchestrator holds the workspace lock at %s", cfg.LockPath())
	}

	return &Orchestrator{cfg: cfg, logger: logger, store: st, lock: lock}, nil
}

// Store returns the orchestrator-owned store handle, or nil after Cleanup.
func (o *Orchestrator) Store() *store.Store {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.store
}

// Cleanup releases the owned store handle and workspace lock and resets both
// to nil. It is safe to call zero, one, or many times, before or after any
// work has run; release failures are logged, never raised, so shutdown paths
// can call it unconditionally.
func (o *Orchestrator) Cleanup() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store != nil {
		if err := o.store.Close(); err != nil {
			o.logger.Warn("failed to close store during cleanup", logging.Error(err))
		}
		o.store = nil
	}
	if o.lock != nil {
		if err := o.lock.Unlock(); err != nil {
			o.logger.Warn("failed to release workspace lock", logging.Error(err))
		}
		o.lock = nil
	}
}

// tally accumulates worker outcomes across goroutines.
type tally struct {
	mu        sync.Mutex
	completed int
	skipped   int
	failed    int
	errors    []string
}

func (t *tally) recordCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
}

func (t *tally) recordSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.skipped++
}

func (t *tally) recordFailed(detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed++
	if detail != "" {
		t.errors = append(t.errors, detail)
	}
}

func (t *tally) recordError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errors = append(t.errors, err.Error())
}

func (t *tally) summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	errs := make([]string, len(t.errors))
	copy(errs, t.errors)
	return Summary{
		Completed: t.completed,
		Skipped:   t.skipped,
		Failed:    t.failed,
		Errors:    errs,
	}
}
