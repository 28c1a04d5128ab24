package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"modernc.org/sqlite"
)

// Configurator applies engine-level settings to every pooled connection so
// the whole pool behaves as a serialized-writer, concurrent-reader SQLite
// instance regardless of driver defaults.
//
// Two hook points exist for observability: connect hooks fire after a new
// physical connection has been configured, begin hooks fire whenever a
// transaction is opened through the store. Correctness depends on every
// connection being configured identically, so any pragma failure closes the
// connection and propagates instead of leaving an unconfigured connection in
// the pool.
type Configurator struct {
	busyTimeout time.Duration

	mu           sync.Mutex
	connectHooks []func()
	beginHooks   []func()
}

// NewConfigurator returns a Configurator enforcing the given lock-wait
// timeout on every connection.
func NewConfigurator(busyTimeout time.Duration) *Configurator {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	return &Configurator{busyTimeout: busyTimeout}
}

// OnConnect registers a hook invoked after each new physical connection is
// configured.
func (c *Configurator) OnConnect(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectHooks = append(c.connectHooks, fn)
}

// OnBegin registers a hook invoked every time a transaction begins through
// the store.
func (c *Configurator) OnBegin(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beginHooks = append(c.beginHooks, fn)
}

// connector returns a database/sql connector that configures every physical
// connection before handing it to the pool.
func (c *Configurator) connector(dsn string) driver.Connector {
	return &configuredConnector{dsn: dsn, drv: &sqlite.Driver{}, cfg: c}
}

func (c *Configurator) pragmas() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = " + strconv.FormatInt(c.busyTimeout.Milliseconds(), 10),
		"PRAGMA foreign_keys = ON",
	}
}

func (c *Configurator) configure(ctx context.Context, conn driver.Conn) error {
	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		return errors.New("sqlite driver connection does not implement ExecerContext")
	}
	for _, pragma := range c.pragmas() {
		if _, err := execer.ExecContext(ctx, pragma, nil); err != nil {
			return fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	c.fire(&c.connectHooks)
	return nil
}

// begin opens a transaction in immediate (exclusive-intent) mode on the held
// connection. Two concurrent writers serialize here instead of racing into a
// late write conflict, which is what makes read-modify-write sequences safe.
func (c *Configurator) begin(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("begin immediate transaction: %w", err)
	}
	c.fire(&c.beginHooks)
	return nil
}

func (c *Configurator) fire(hooks *[]func()) {
	c.mu.Lock()
	snapshot := make([]func(), len(*hooks))
	copy(snapshot, *hooks)
	c.mu.Unlock()
	for _, fn := range snapshot {
		fn()
	}
}

type configuredConnector struct {
	dsn string
	drv driver.Driver
	cfg *Configurator
}

func (c *configuredConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.drv.Open(c.dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}
	if err := c.cfg.configure(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *configuredConnector) Driver() driver.Driver {
	return c.drv
}
