package store

import (
	"context"
	"database/sql"
	"fmt"

	"loom/internal/logging"
)

// Tx exposes statement execution on the single connection held by a scoped
// transaction. Every statement issued through a Tx sees the transaction's
// own writes and is isolated from concurrent writers until commit.
type Tx struct {
	conn *sql.Conn
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.conn.QueryContext(ctx, query, args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.conn.QueryRowContext(ctx, query, args...)
}

// WithTransaction runs fn inside an immediate-mode transaction on a dedicated
// pooled connection. The transaction commits when fn returns nil and rolls
// back when fn returns an error; the error is returned to the caller
// unchanged. The connection is released back to the pool on every exit path.
//
// A concurrent WithTransaction touching the same rows blocks at begin time
// (bounded by the configured lock-wait timeout) until this one commits or
// rolls back, so read-modify-write sequences never lose updates.
func (s *Store) WithTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if err := s.configurator.begin(ctx, conn); err != nil {
		return err
	}

	if err := fn(&Tx{conn: conn}); err != nil {
		s.rollback(ctx, conn)
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		s.rollback(ctx, conn)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// rollback runs even when ctx is already canceled so an aborted body cannot
// leave an open transaction on a pooled connection.
func (s *Store) rollback(ctx context.Context, conn *sql.Conn) {
	if _, err := conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); err != nil {
		s.logger.Warn("transaction rollback failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "connection will be discarded by the pool"),
		)
	}
}
