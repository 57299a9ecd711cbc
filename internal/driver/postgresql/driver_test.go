package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/schemarun/internal/driver"
	"github.com/loykin/schemarun/internal/source"
)

func TestQuoteIdentifier(t *testing.T) {
	if got := quoteIdentifier(`plain`); got != `"plain"` {
		t.Fatalf("got %q", got)
	}
	if got := quoteIdentifier(`wei"rd`); got != `"wei""rd"` {
		t.Fatalf("got %q", got)
	}
}

func TestLockKey_Deterministic(t *testing.T) {
	a := driver.LockKey("public", "schema_migrations", "app")
	b := driver.LockKey("public", "schema_migrations", "app")
	if a != b {
		t.Fatalf("lock key must be deterministic: %d vs %d", a, b)
	}
	c := driver.LockKey("public", "schema_migrations", "other")
	if a == c {
		t.Fatalf("different databases should not share a key")
	}
}

// waitForPostgresDSN pings the DSN until it responds or timeout elapses (pgx stdlib).
func waitForPostgresDSN(dsn string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		db, err := sql.Open("pgx", dsn)
		if err == nil {
			pingErr := db.Ping()
			_ = db.Close()
			if pingErr == nil {
				return nil
			}
			lastErr = pingErr
		} else {
			lastErr = err
		}
		time.Sleep(500 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for postgres")
	}
	return lastErr
}

// Integration test with PostgreSQL via testcontainers
func TestPostgresDriver_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	req := tc.ContainerRequest{
		Image:        "postgres:16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "schemarun_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		),
	}
	pg, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		// Skip on CI envs that cannot run containers, rather than failing whole suite
		t.Skipf("skipping Postgres container test: %v", err)
	}
	defer func() { _ = pg.Terminate(ctx) }()

	host, err := pg.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/schemarun_test?sslmode=disable", host, port.Port())
	if err := waitForPostgresDSN(dsn, 60*time.Second); err != nil {
		t.Fatalf("postgres not reachable: %v", err)
	}

	d, err := Open(ctx, Config{DSN: dsn, LockTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("open driver: %v", err)
	}
	defer func() { _ = d.Close() }()

	// baseline on a fresh database
	st, err := d.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.HasVersion() || st.Dirty {
		t.Fatalf("expected baseline, got %v", st)
	}

	// lock is re-entrant and a second session times out while held
	if err := d.Lock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := d.Lock(ctx); err != nil {
		t.Fatalf("re-entrant lock: %v", err)
	}
	second, err := Open(ctx, Config{DSN: dsn, LockTimeout: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("open second driver: %v", err)
	}
	if err := second.Lock(ctx); !errors.Is(err, driver.ErrLockTimeout) {
		_ = second.Close()
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
	_ = second.Close()

	// set/get round trip, including the dirty baseline row
	for _, want := range []driver.State{
		{Version: 1, Dirty: true},
		{Version: 1},
		{Version: driver.NilVersion, Dirty: true},
	} {
		if err := d.SetState(ctx, want); err != nil {
			t.Fatalf("set %v: %v", want, err)
		}
		got, err := d.State(ctx)
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		if got != want {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}

	// transactional script execution rolls back on failure
	bad := source.NewScriptFromString(2, "bad", source.DirectionUp,
		"CREATE TABLE t1 (id int); CREATE TABLE t1 (id int);")
	if err := d.ExecScript(ctx, bad); err == nil {
		t.Fatalf("expected duplicate table error")
	}
	var exists bool
	row := d.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 't1')`)
	if err := row.Scan(&exists); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if exists {
		t.Fatalf("failed script must roll back")
	}

	good := source.NewScriptFromString(3, "good", source.DirectionUp, "CREATE TABLE t2 (id int)")
	if err := d.ExecScript(ctx, good); err != nil {
		t.Fatalf("exec: %v", err)
	}

	if err := d.Drop(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	st, err = d.State(ctx)
	if err != nil {
		t.Fatalf("state after drop: %v", err)
	}
	if st.HasVersion() || st.Dirty {
		t.Fatalf("expected baseline after drop, got %v", st)
	}

	if err := d.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}
