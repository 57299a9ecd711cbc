package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/loykin/schemarun/internal/common"
	"github.com/loykin/schemarun/internal/driver"
	"github.com/loykin/schemarun/internal/source"
)

// Driver is a script driver backed by MySQL. GET_LOCK is session-scoped, so
// like the postgres driver it pins a single connection for its lifetime.
type Driver struct {
	cfg  Config
	db   *sql.DB
	conn *sql.Conn
	log  *common.Logger

	mu       sync.Mutex
	isLocked bool
	lockName string

	dbName string
}

// Open connects, pins a session and resolves the database name for the lock key.
func Open(ctx context.Context, cfg Config) (*Driver, error) {
	cfg.withDefaults()
	dsn := cfg.dsn()
	if dsn == "" {
		return nil, errors.New("mysql: empty dsn")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: connect: %w", err)
	}

	d := &Driver{
		cfg:  cfg,
		db:   db,
		conn: conn,
		log:  common.GetLogger().WithComponent("driver").WithDriver(DriverName),
	}
	if err := conn.QueryRowContext(ctx, `SELECT DATABASE()`).Scan(&d.dbName); err != nil {
		_ = d.Close()
		return nil, &driver.Error{Query: "SELECT DATABASE()", Err: err}
	}
	// GET_LOCK names are strings; reuse the numeric key for parity with the
	// advisory-lock drivers.
	d.lockName = fmt.Sprintf("schemarun:%d", driver.LockKey(d.cfg.MigrationsTable, d.dbName))
	return d, nil
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *Driver) table() string {
	return quoteIdentifier(d.cfg.MigrationsTable)
}

func (d *Driver) ensureVersionTable(ctx context.Context) error {
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (version bigint NOT NULL PRIMARY KEY, dirty boolean NOT NULL)", d.table())
	if _, err := d.conn.ExecContext(ctx, q); err != nil {
		return &driver.Error{Query: q, Err: err}
	}
	return nil
}

// Lock acquires GET_LOCK with the configured timeout; re-entrant per instance.
func (d *Driver) Lock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isLocked {
		return nil
	}
	if err := d.ensureVersionTable(ctx); err != nil {
		return err
	}
	var got sql.NullInt64
	q := `SELECT GET_LOCK(?, ?)`
	err := d.conn.QueryRowContext(ctx, q, d.lockName, int(d.cfg.LockTimeout.Seconds())).Scan(&got)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return fmt.Errorf("%w: %v", driver.ErrLock, err)
	}
	if !got.Valid || got.Int64 != 1 {
		return driver.ErrLockTimeout
	}
	d.isLocked = true
	return nil
}

// Unlock releases the named lock; idempotent.
func (d *Driver) Unlock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isLocked {
		return nil
	}
	if _, err := d.conn.ExecContext(ctx, `SELECT RELEASE_LOCK(?)`, d.lockName); err != nil {
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
	err := d.conn.QueryRowContext(ctx, q).Scan(&st.Version, &st.Dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return driver.State{Version: driver.NilVersion}, nil
	}
	if err != nil {
		return driver.State{Version: driver.NilVersion}, &driver.Error{Query: q, Err: err}
	}
	return st, nil
}

// SetState rewrites the version row inside a transaction.
func (d *Driver) SetState(ctx context.Context, st driver.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureVersionTable(ctx); err != nil {
		return err
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return &driver.Error{Err: err}
	}
	q := fmt.Sprintf("DELETE FROM %s", d.table())
	if _, err := tx.ExecContext(ctx, q); err != nil {
		_ = tx.Rollback()
		return &driver.Error{Query: q, Err: err}
	}
	if st.HasVersion() || st.Dirty {
		q = fmt.Sprintf("INSERT INTO %s (version, dirty) VALUES (?, ?)", d.table())
		if _, err := tx.ExecContext(ctx, q, st.Version, st.Dirty); err != nil {
			_ = tx.Rollback()
			return &driver.Error{Query: q, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &driver.Error{Err: err}
	}
	return nil
}

// ExecScript runs the script body. DDL statements commit implicitly in MySQL;
// the transaction wrap protects DML-only scripts.
func (d *Driver) ExecScript(ctx context.Context, sc *source.Script) error {
	body, err := sc.Body()
	if err != nil {
		return err
	}
	if strings.TrimSpace(body) == "" {
		return nil
	}

	var stmts []string
	if d.cfg.MultiStatement {
		stmts, err = driver.SplitStatements(body, d.cfg.MultiStatementMaxSize)
		if err != nil {
			return err
		}
	} else {
		stmts = []string{body}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.DisableTx {
		for _, stmt := range stmts {
			if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
				return &driver.Error{Query: stmt, Err: err}
			}
		}
		return nil
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return &driver.Error{Err: err}
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return &driver.Error{Query: stmt, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &driver.Error{Err: err}
	}
	return nil
}

// Drop removes every table in the current database with foreign key checks
// suspended for the session.
func (d *Driver) Drop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'`
	rows, err := d.conn.QueryContext(ctx, q)
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

	if len(tables) == 0 {
		return nil
	}
	if _, err := d.conn.ExecContext(ctx, `SET foreign_key_checks = 0`); err != nil {
		return &driver.Error{Err: err}
	}
	defer func() { _, _ = d.conn.ExecContext(ctx, `SET foreign_key_checks = 1`) }()
	for _, t := range tables {
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(t))
		if _, err := d.conn.ExecContext(ctx, stmt); err != nil {
			return &driver.Error{Query: stmt, Err: err}
		}
		d.log.Debug("dropped table", "table", t)
	}
	return nil
}

// Close releases the lock if still held, then tears down the session.
func (d *Driver) Close() error {
	_ = d.Unlock(context.Background())
	var errs []error
	if d.conn != nil {
		errs = append(errs, d.conn.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}
