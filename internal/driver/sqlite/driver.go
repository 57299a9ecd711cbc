package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loykin/schemarun/internal/common"
	"github.com/loykin/schemarun/internal/constants"
	"github.com/loykin/schemarun/internal/driver"
	"github.com/loykin/schemarun/internal/source"
)

// Driver is a script driver backed by SQLite. SQLite has no session-scoped
// advisory locks, so cross-process exclusion falls back to a guard row in a
// companion <table>_lock table, polled until the lock timeout. That guard
// protects against other schemarun processes only; arbitrary writers are
// outside its reach.
type Driver struct {
	cfg Config
	db  *sql.DB
	log *common.Logger

	mu       sync.Mutex
	isLocked bool
}

// Open connects with the single-writer pool settings SQLite wants.
func Open(_ context.Context, cfg Config) (*Driver, error) {
	cfg.withDefaults()
	dsn := cfg.dsn()
	if dsn == "" {
		return nil, errors.New("sqlite: empty dsn")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
	db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)

	return &Driver{
		cfg: cfg,
		db:  db,
		log: common.GetLogger().WithComponent("driver").WithDriver(DriverName),
	}, nil
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Driver) table() string {
	return quoteIdentifier(d.cfg.MigrationsTable)
}

func (d *Driver) lockTable() string {
	return quoteIdentifier(d.cfg.MigrationsTable + constants.LockTableSuffix)
}

func (d *Driver) ensureVersionTable(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (version INTEGER NOT NULL PRIMARY KEY, dirty INTEGER NOT NULL)", d.table()),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER NOT NULL PRIMARY KEY CHECK (id = 1))", d.lockTable()),
	}
	for _, q := range stmts {
		if _, err := d.db.ExecContext(ctx, q); err != nil {
			return &driver.Error{Query: q, Err: err}
		}
	}
	return nil
}

// Lock inserts the guard row, retrying until the timeout. Re-entrant per
// instance.
func (d *Driver) Lock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isLocked {
		return nil
	}
	if err := d.ensureVersionTable(ctx); err != nil {
		return err
	}
	deadline := time.Now().Add(d.cfg.LockTimeout)
	q := fmt.Sprintf("INSERT INTO %s (id) VALUES (1)", d.lockTable())
	for {
		_, err := d.db.ExecContext(ctx, q)
		if err == nil {
			d.isLocked = true
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return driver.ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(constants.DefaultLockPollInterval):
		}
	}
}

// Unlock deletes the guard row; idempotent.
func (d *Driver) Unlock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isLocked {
		return nil
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE id = 1", d.lockTable())
	if _, err := d.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrUnlock, err)
	}
	d.isLocked = false
	return nil
}

// State reads the single version row; an empty table is baseline.
func (d *Driver) State(ctx context.Context) (driver.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureVersionTable(ctx); err != nil {
		return driver.State{Version: driver.NilVersion}, err
	}
	q := fmt.Sprintf("SELECT version, dirty FROM %s LIMIT 1", d.table())
	var st driver.State
	var dirty int64
	err := d.db.QueryRowContext(ctx, q).Scan(&st.Version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return driver.State{Version: driver.NilVersion}, nil
	}
	if err != nil {
		return driver.State{Version: driver.NilVersion}, &driver.Error{Query: q, Err: err}
	}
	st.Dirty = dirty != 0
	return st, nil
}

// SetState rewrites the version row inside a transaction.
func (d *Driver) SetState(ctx context.Context, st driver.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureVersionTable(ctx); err != nil {
		return err
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return &driver.Error{Err: err}
	}
	q := fmt.Sprintf("DELETE FROM %s", d.table())
	if _, err := tx.ExecContext(ctx, q); err != nil {
		_ = tx.Rollback()
		return &driver.Error{Query: q, Err: err}
	}
	if st.HasVersion() || st.Dirty {
		dirty := 0
		if st.Dirty {
			dirty = 1
		}
		q = fmt.Sprintf("INSERT INTO %s (version, dirty) VALUES (?, ?)", d.table())
		if _, err := tx.ExecContext(ctx, q, st.Version, dirty); err != nil {
			_ = tx.Rollback()
			return &driver.Error{Query: q, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &driver.Error{Err: err}
	}
	return nil
}

// ExecScript runs the script body; modernc's driver accepts multi-statement
// bodies in a single Exec, so no splitting is needed here.
func (d *Driver) ExecScript(ctx context.Context, sc *source.Script) error {
	body, err := sc.Body()
	if err != nil {
		return err
	}
	if strings.TrimSpace(body) == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.DisableTx {
		if _, err := d.db.ExecContext(ctx, body); err != nil {
			return &driver.Error{Query: body, Err: err}
		}
		return nil
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return &driver.Error{Err: err}
	}
	if _, err := tx.ExecContext(ctx, body); err != nil {
		_ = tx.Rollback()
		return &driver.Error{Query: body, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &driver.Error{Err: err}
	}
	return nil
}

// Drop removes every user table, sqlite internals excluded. The version and
// guard tables go with the rest and come back lazily.
func (d *Driver) Drop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`
	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return &driver.Error{Query: q, Err: err}
	}
	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			_ = rows.Close()
			return &driver.Error{Query: q, Err: err}
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return &driver.Error{Query: q, Err: err}
	}
	_ = rows.Close()

	for _, t := range tables {
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(t))
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return &driver.Error{Query: stmt, Err: err}
		}
		d.log.Debug("dropped table", "table", t)
	}
	// Dropping the guard table released the lock with it.
	d.isLocked = false
	return nil
}

// Close releases the guard row if held, then closes the pool.
func (d *Driver) Close() error {
	_ = d.Unlock(context.Background())
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
