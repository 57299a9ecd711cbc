package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/loykin/schemarun/internal/source"
)

// NilVersion is the wire sentinel for "no migration applied". The persisted
// row stores -1; API-level reads and writes use the same value so state
// written here is readable by golang-migrate and vice versa.
const NilVersion int64 = -1

// State is the persisted (version, dirty) pair. Version == NilVersion means
// baseline. When Dirty is true, Version identifies the migration that was in
// flight, never the previously completed one.
type State struct {
	Version int64
	Dirty   bool
}

// HasVersion reports whether a real migration version is recorded.
func (s State) HasVersion() bool { return s.Version != NilVersion }

func (s State) String() string {
	if !s.HasVersion() {
		if s.Dirty {
			return "nil (dirty)"
		}
		return "nil"
	}
	if s.Dirty {
		return fmt.Sprintf("%d (dirty)", s.Version)
	}
	return fmt.Sprintf("%d", s.Version)
}

// Driver is the datastore boundary of the engine. Implementations own their
// connections exclusively and serialize access internally.
type Driver interface {
	// Lock acquires the exclusive coordination lock for the migration table
	// and ensures the version table exists. Re-entrant per instance: a second
	// Lock without an intervening Unlock is a no-op. Blocks up to the
	// configured timeout and fails with ErrLockTimeout afterwards.
	Lock(ctx context.Context) error

	// Unlock releases the coordination lock; idempotent. Callers invoke it
	// with an uncancellable context so locks are never leaked.
	Unlock(ctx context.Context) error

	// State reads the persisted version state. Callable without the lock;
	// reads are best-effort in that case.
	State(ctx context.Context) (State, error)

	// SetState atomically replaces the single row of the version table.
	// The row is written whenever st.HasVersion() or st.Dirty; the baseline
	// (NilVersion, clean) leaves the table empty.
	SetState(ctx context.Context, st State) error

	// Drop deletes every object in the driver's working namespace. The
	// version table is recreated lazily by the next operation.
	Drop(ctx context.Context) error

	// Close releases the held lock, if any, and closes the connection.
	Close() error
}

// ScriptDriver extends Driver with verbatim script execution. Capability is
// detected by type assertion at apply time.
type ScriptDriver interface {
	Driver

	// ExecScript runs the script body against the datastore, inside a
	// transaction when the driver is configured for one. Empty or
	// whitespace-only bodies succeed without touching the datastore.
	ExecScript(ctx context.Context, sc *source.Script) error
}

// Lock failure modes shared by all drivers.
var (
	ErrLockTimeout = errors.New("timeout: can't acquire database lock")
	ErrLock        = errors.New("can't acquire database lock")
	ErrUnlock      = errors.New("can't release database lock")
)

// Error wraps a datastore failure outside the dedicated taxonomy, keeping the
// failing query for diagnostics.
type Error struct {
	Query string
	Err   error
}

func (e *Error) Error() string {
	if e.Query == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v in query %s", e.Err, e.Query)
}

func (e *Error) Unwrap() error { return e.Err }
