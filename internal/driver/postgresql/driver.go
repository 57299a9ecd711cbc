package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/schemarun/internal/common"
	"github.com/loykin/schemarun/internal/driver"
	"github.com/loykin/schemarun/internal/source"
)

// Driver is the reference script driver. It owns a single long-lived session
// so the advisory lock taken in Lock stays held across every operation of a
// run; a mutex serializes all access to that session.
type Driver struct {
	cfg Config
	db  *sql.DB
	// advisory locks are session-scoped, so all statements go through conn
	conn *sql.Conn
	log  *common.Logger

	mu       sync.Mutex
	isLocked bool
	lockKey  int64

	dbName string
	schema string
}

// Open connects, pins a session and resolves the default schema and database
// name used for identifier quoting and the lock key.
func Open(ctx context.Context, cfg Config) (*Driver, error) {
	cfg.withDefaults()
	dsn := cfg.dsn()
	if dsn == "" {
		return nil, errors.New("postgresql: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgresql: open: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgresql: connect: %w", err)
	}

	d := &Driver{
		cfg:  cfg,
		db:   db,
		conn: conn,
		log:  common.GetLogger().WithComponent("driver").WithDriver(DriverName),
	}

	row := conn.QueryRowContext(ctx, `SELECT current_database(), current_schema()`)
	var schema sql.NullString
	if err := row.Scan(&d.dbName, &schema); err != nil {
		_ = d.Close()
		return nil, &driver.Error{Query: "SELECT current_database(), current_schema()", Err: err}
	}
	d.schema = cfg.MigrationsSchema
	if d.schema == "" {
		d.schema = schema.String
	}
	if d.schema == "" {
		d.schema = "public"
	}
	d.lockKey = driver.LockKey(d.schema, d.cfg.MigrationsTable, d.dbName)
	return d, nil
}

// quoteIdentifier defends every table/schema reference against reserved words
// and injection through configured names.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Driver) table() string {
	return quoteIdentifier(d.schema) + "." + quoteIdentifier(d.cfg.MigrationsTable)
}

func (d *Driver) ensureVersionTable(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (version bigint NOT NULL PRIMARY KEY, dirty boolean NOT NULL)`, d.table())
	if _, err := d.conn.ExecContext(ctx, q); err != nil {
		return &driver.Error{Query: q, Err: err}
	}
	return nil
}

// Lock takes the advisory lock for this migration table. Re-entrant within
// the instance. The wait is bounded by the configured lock timeout.
func (d *Driver) Lock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isLocked {
		return nil
	}
	if err := d.ensureVersionTable(ctx); err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, d.cfg.LockTimeout)
	defer cancel()
	if _, err := d.conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, d.lockKey); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if errors.Is(lockCtx.Err(), context.DeadlineExceeded) {
			return driver.ErrLockTimeout
		}
		return fmt.Errorf("%w: %v", driver.ErrLock, err)
	}
	d.isLocked = true
	d.log.Debug("acquired advisory lock", "key", d.lockKey)
	return nil
}

// Unlock releases the advisory lock; calling it without the lock is a no-op.
func (d *Driver) Unlock(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isLocked {
		return nil
	}
	if _, err := d.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, d.lockKey); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrUnlock, err)
	}
	d.isLocked = false
	d.log.Debug("released advisory lock", "key", d.lockKey)
	return nil
}

// State reads the single version row; an empty (or missing) table is baseline.
func (d *Driver) State(ctx context.Context) (driver.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureVersionTable(ctx); err != nil {
		return driver.State{Version: driver.NilVersion}, err
	}
	q := fmt.Sprintf(`SELECT version, dirty FROM %s LIMIT 1`, d.table())
	row := d.conn.QueryRowContext(ctx, q)
	var st driver.State
	err := row.Scan(&st.Version, &st.Dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return driver.State{Version: driver.NilVersion}, nil
	}
	if err != nil {
		return driver.State{Version: driver.NilVersion}, &driver.Error{Query: q, Err: err}
	}
	return st, nil
}

// SetState rewrites the version row in one transaction: a concurrent reader
// sees either the full prior row or the full new one. The row is inserted
// whenever a version is present or the dirty flag is set, so a failure on the
// very first migration persists as (-1, true).
func (d *Driver) SetState(ctx context.Context, st driver.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return &driver.Error{Err: err}
	}
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (version bigint NOT NULL PRIMARY KEY, dirty boolean NOT NULL)`, d.table())
	if _, err := tx.ExecContext(ctx, q); err != nil {
		_ = tx.Rollback()
		return &driver.Error{Query: q, Err: err}
	}
	q = `TRUNCATE ` + d.table()
	if _, err := tx.ExecContext(ctx, q); err != nil {
		_ = tx.Rollback()
		return &driver.Error{Query: q, Err: err}
	}
	if st.HasVersion() || st.Dirty {
		q = fmt.Sprintf(`INSERT INTO %s (version, dirty) VALUES ($1, $2)`, d.table())
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

// ExecScript runs the script body verbatim, wrapped in a transaction unless
// disabled. Empty and whitespace-only bodies succeed without a round trip.
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

// Drop removes every base table in the working schema, the version table
// included; it is recreated lazily by the next operation.
func (d *Driver) Drop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE'`
	rows, err := d.conn.QueryContext(ctx, q, d.schema)
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
		stmt := fmt.Sprintf(`DROP TABLE IF EXISTS %s.%s CASCADE`, quoteIdentifier(d.schema), quoteIdentifier(t))
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
