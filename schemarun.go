// Package schemarun is a database schema migration engine. It advances or
// rewinds a datastore to a requested version from an ordered catalog of
// versioned scripts, keeping a single durable record of the installed version
// and whether the datastore is in a consistent state. Version-table state is
// wire-compatible with golang-migrate.
package schemarun

import (
	"context"
	"fmt"

	"github.com/loykin/schemarun/internal/common"
	"github.com/loykin/schemarun/internal/driver"
	"github.com/loykin/schemarun/internal/driver/mysql"
	"github.com/loykin/schemarun/internal/driver/postgresql"
	"github.com/loykin/schemarun/internal/driver/sqlite"
	imig "github.com/loykin/schemarun/internal/migration"
	"github.com/loykin/schemarun/internal/source"
	"github.com/loykin/schemarun/internal/source/file"
)

// Re-export commonly used types for public API

// Driver is the datastore boundary: locking, version state, drop.
type Driver = driver.Driver

// ScriptDriver is a Driver that can execute textual script bodies.
type ScriptDriver = driver.ScriptDriver

// State is the persisted (version, dirty) pair.
type State = driver.State

// NilVersion encodes "no migration applied" on the wire.
const NilVersion = driver.NilVersion

// Source enumerates a migration catalog.
type Source = source.Source

// Script is a single migration script with a lazily-read body.
type Script = source.Script

// Migration is one catalog entry.
type Migration = imig.Migration

// Registry is the ordered, indexed catalog.
type Registry = imig.Registry

// Runner orchestrates migrations over a Source and a Driver.
type Runner = imig.Runner

// Option configures a Runner.
type Option = imig.Option

// Error taxonomy aliases.
type (
	DirtyError            = imig.DirtyError
	DuplicateVersionError = imig.DuplicateVersionError
	MissingMigrationError = imig.MissingMigrationError
	FailedError           = imig.FailedError
	SourceError           = source.Error
	DriverError           = driver.Error
)

// Argument and lock errors.
var (
	ErrStepCount      = imig.ErrStepCount
	ErrInvalidVersion = imig.ErrInvalidVersion
	ErrLockTimeout    = driver.ErrLockTimeout
	ErrLock           = driver.ErrLock
)

// Runner options.
var (
	WithLogger   = imig.WithLogger
	WithPrefetch = imig.WithPrefetch
)

// New builds a Runner over src and drv. The Runner owns both for its
// lifetime; Close disposes the driver.
func New(src Source, drv Driver, opts ...Option) *Runner {
	return imig.NewRunner(src, drv, opts...)
}

// NewWithCatalog builds a Runner over an in-memory catalog, for embedded
// migrations with custom actions.
func NewWithCatalog(migrations []*Migration, drv Driver, opts ...Option) (*Runner, error) {
	return imig.NewRunnerWithCatalog(migrations, drv, opts...)
}

// NewFileSource creates a filesystem Source rooted at dir. file:// URLs are
// accepted.
func NewFileSource(dir string) Source {
	return file.New(dir)
}

// Driver name constants for OpenDriver.
const (
	DriverPostgresql = postgresql.DriverName
	DriverMySQL      = mysql.DriverName
	DriverSQLite     = sqlite.DriverName
)

// OpenDriver opens a driver by name from a generic configuration map, the
// keys being the backend config's mapstructure fields (dsn, migrations_table,
// lock_timeout, ...). Typed entry points live in the backend packages; this
// is the decode path for configuration documents.
func OpenDriver(ctx context.Context, name string, config map[string]interface{}) (Driver, error) {
	switch name {
	case DriverPostgresql, "postgres":
		var c postgresql.Config
		if err := driver.Decode(config, &c); err != nil {
			return nil, err
		}
		return postgresql.Open(ctx, c)
	case DriverMySQL:
		var c mysql.Config
		if err := driver.Decode(config, &c); err != nil {
			return nil, err
		}
		return mysql.Open(ctx, c)
	case DriverSQLite, "sqlite3":
		var c sqlite.Config
		if err := driver.Decode(config, &c); err != nil {
			return nil, err
		}
		return sqlite.Open(ctx, c)
	default:
		return nil, fmt.Errorf("unknown driver %q", name)
	}
}

// NewMigration builds a migration from explicit apply/revert actions.
func NewMigration(version int64, description string, apply, revert imig.Action) (*Migration, error) {
	return imig.New(version, description, apply, revert)
}

// Up applies all pending migrations from dir against drv.
func Up(ctx context.Context, dir string, drv Driver) error {
	r := New(NewFileSource(dir), drv)
	return r.Up(ctx)
}

// Down reverts a single migration from dir against drv.
func Down(ctx context.Context, dir string, drv Driver) error {
	r := New(NewFileSource(dir), drv)
	return r.Down(ctx)
}

// Logger is the structured logger used across the engine.
type Logger = common.Logger

// NewLogger creates a text logger at the named level ("error", "warn",
// "info", "debug").
func NewLogger(level string) *Logger {
	return common.NewLogger(common.ParseLogLevel(level))
}

// SetDefaultLogger replaces the package-wide default logger.
func SetDefaultLogger(l *Logger) { common.SetDefaultLogger(l) }
