package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
)

// Store manages work-item persistence backed by SQLite. All mutating
// operations are single conditional statements evaluated atomically by the
// engine; callers never observe a read-then-write window.
type Store struct {
	db           *sql.DB
	path         string
	configurator *Configurator
	logger       *slog.Logger
}

// Open initializes or connects to the work-item database. Every pooled
// connection is configured through a Configurator built from the config's
// lock-wait timeout; a configuration failure aborts the open, because
// correctness depends on all connections behaving identically.
func Open(cfg *config.Config) (*Store, error) {
	return OpenWithConfigurator(cfg, NewConfigurator(time.Duration(cfg.LockWaitTimeoutMS)*time.Millisecond))
}

// OpenWithConfigurator opens the store using a caller-supplied Configurator,
// allowing hooks to be attached before the first connection is made.
func OpenWithConfigurator(cfg *config.Config, configurator *Configurator) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db := sql.OpenDB(configurator.connector(dbPath))

	store := &Store{db: db, path: dbPath, configurator: configurator, logger: logging.NewNop()}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite connection: %w", err)
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// SetLogger attaches a logger for rollback and maintenance diagnostics.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	s.logger = logging.NewComponentLogger(logger, "store")
}

// Configurator returns the connection configurator so callers can attach
// connect and begin probes.
func (s *Store) Configurator() *Configurator {
	return s.configurator
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts a new work item. When the draft carries no priority, the next
// available priority is computed inside the same INSERT statement so two
// concurrent producers cannot collide.
func (s *Store) Add(ctx context.Context, draft Draft) (*Item, error) {
	if strings.TrimSpace(draft.Name) == "" {
		return nil, errors.New("work item name is required")
	}
	stepsJSON, err := json.Marshal(emptySlice(draft.Steps))
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO work_items (priority, category, name, description, steps_json, passes, in_progress, created_at, updated_at)
         VALUES (
             COALESCE(?, (SELECT COALESCE(MAX(priority), 0) + 1 FROM work_items)),
             ?, ?, ?, ?, 0, 0, ?, ?
         )`,
		nullablePriority(draft.Priority),
		draft.Category,
		draft.Name,
		draft.Description,
		string(stepsJSON),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert work item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// AddBatch inserts drafts as one atomic unit: either every item is enqueued
// or none are. Priorities are assigned sequentially inside the transaction.
func (s *Store) AddBatch(ctx context.Context, drafts []Draft) error {
	if len(drafts) == 0 {
		return nil
	}
	for _, draft := range drafts {
		if strings.TrimSpace(draft.Name) == "" {
			return errors.New("work item name is required")
		}
	}
	return s.WithTransaction(ctx, func(tx *Tx) error {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, draft := range drafts {
			stepsJSON, err := json.Marshal(emptySlice(draft.Steps))
			if err != nil {
				return fmt.Errorf("marshal steps: %w", err)
			}
			_, err = tx.ExecContext(
				ctx,
				`INSERT INTO work_items (priority, category, name, description, steps_json, passes, in_progress, created_at, updated_at)
                 VALUES (
                     COALESCE(?, (SELECT COALESCE(MAX(priority), 0) + 1 FROM work_items)),
                     ?, ?, ?, ?, 0, 0, ?, ?
                 )`,
				nullablePriority(draft.Priority),
				draft.Category,
				draft.Name,
				draft.Description,
				string(stepsJSON),
				now,
				now,
			)
			if err != nil {
				return fmt.Errorf("insert work item %q: %w", draft.Name, err)
			}
		}
		return nil
	})
}

// Get fetches a work item by identifier. Returns nil when no item exists.
func (s *Store) Get(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work item: %w", err)
	}
	return item, nil
}

// Claim atomically transitions an item from claimable to in-progress. The
// filter conditions and the write are evaluated as one statement by the
// engine, so for N concurrent claimants exactly one observes a row-affected
// count of 1. Losing is the expected contention outcome, not an error.
func (s *Store) Claim(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE work_items
         SET in_progress = 1, claimed_at = ?, updated_at = ?
         WHERE id = ? AND passes = 0 AND in_progress = 0`,
		now,
		now,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("claim work item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// Skip requeues an item at the lowest scheduling priority and clears its
// in-progress flag. The new maximum is computed inside the UPDATE itself, so
// concurrent skips can never both observe the same maximum and collide.
func (s *Store) Skip(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE work_items
         SET priority = (SELECT COALESCE(MAX(priority), 0) + 1 FROM work_items),
             in_progress = 0, claimed_at = NULL, updated_at = ?
         WHERE id = ?`,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("skip work item %d: %w", id, err)
	}
	return nil
}

// MarkDone records terminal success for an item. Idempotent: a second call
// leaves the same terminal state.
func (s *Store) MarkDone(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE work_items
         SET passes = 1, in_progress = 0, claimed_at = NULL, updated_at = ?
         WHERE id = ?`,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark work item %d done: %w", id, err)
	}
	return nil
}

// NextEligible returns up to limit claimable items ordered by ascending
// priority. A claim pass works through one batch at a time instead of
// materializing the whole queue.
func (s *Store) NextEligible(ctx context.Context, limit int) ([]*Item, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM work_items WHERE passes = 0 AND in_progress = 0 ORDER BY priority, id LIMIT ?`, limit)
}

// ListEligible returns claimable items ordered by ascending priority.
func (s *Store) ListEligible(ctx context.Context) ([]*Item, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM work_items WHERE passes = 0 AND in_progress = 0 ORDER BY priority`)
}

// List returns all items ordered by ascending priority.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM work_items ORDER BY priority`)
}

// InProgress returns items currently holding a claim, oldest claim first.
// Items stuck here after a fatal executor failure are deliberately visible
// rather than silently requeued.
func (s *Store) InProgress(ctx context.Context) ([]*Item, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM work_items WHERE in_progress = 1 ORDER BY claimed_at`)
}

// Release clears the in-progress flag on stuck items without renumbering
// them, for operator recovery. With no ids it releases every claimed item.
func (s *Store) Release(ctx context.Context, ids ...int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `UPDATE work_items SET in_progress = 0, claimed_at = NULL, updated_at = ? WHERE in_progress = 1`
	args := []any{now}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("release work items: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns aggregate queue counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT COUNT(1),
               COALESCE(SUM(CASE WHEN passes = 0 AND in_progress = 0 THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(in_progress), 0),
               COALESCE(SUM(passes), 0)
        FROM work_items`)
	var stats Stats
	if err := row.Scan(&stats.Total, &stats.Eligible, &stats.InProgress, &stats.Passed); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return stats, nil
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

const itemColumns = "id, priority, category, name, description, steps_json, passes, in_progress, created_at, updated_at, claimed_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id         int64
		priority   int64
		category   string
		name       string
		desc       string
		stepsRaw   string
		passes     int64
		inProgress int64
		createdRaw string
		updatedRaw string
		claimedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&priority,
		&category,
		&name,
		&desc,
		&stepsRaw,
		&passes,
		&inProgress,
		&createdRaw,
		&updatedRaw,
		&claimedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:          id,
		Priority:    priority,
		Category:    category,
		Name:        name,
		Description: desc,
		Passes:      passes != 0,
		InProgress:  inProgress != 0,
	}

	if err := json.Unmarshal([]byte(stepsRaw), &item.Steps); err != nil {
		return nil, fmt.Errorf("decode steps for item %d: %w", id, err)
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if claimedRaw.Valid {
		if claimed, err := parseTimeString(claimedRaw.String); err == nil {
			item.ClaimedAt = &claimed
		}
	}
	return item, nil
}

func nullablePriority(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func emptySlice(steps []string) []string {
	if steps == nil {
		return []string{}
	}
	return steps
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
