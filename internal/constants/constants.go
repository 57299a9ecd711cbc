package constants

import "time"

// Database Constants
const (
	// PostgreSQL defaults
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	// MySQL defaults
	DefaultMySQLPort = 3306

	// Connection pool settings
	DefaultSQLiteMaxConnections = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns   = 1

	// Default version table name; wire-compatible with golang-migrate.
	DefaultMigrationsTable = "schema_migrations"

	// Suffix of the guard table used by drivers without native session locks.
	LockTableSuffix = "_lock"
)

// Time and Duration Constants
const (
	// How long a driver waits for the coordination lock before giving up.
	DefaultLockTimeout = 15 * time.Second

	// Poll interval for guard-row lock acquisition.
	DefaultLockPollInterval = 100 * time.Millisecond

	// SQLite pool lifetimes
	DefaultSQLiteLifetime = 10 * time.Minute
	DefaultSQLiteIdleTime = 5 * time.Minute
)

// Script Execution Constants
const (
	// Upper bound for a single statement in multi-statement mode; a safety
	// valve against pathological input, not a dialect rule.
	DefaultMultiStatementMaxSize = 10 << 20 // 10 MiB

	// How many upcoming script bodies the runner reads ahead of execution.
	DefaultPrefetch = 10
)

// Migration File Constants
const (
	DefaultMigrationExt = "sql"
	DirectionUpToken    = "up"
	DirectionDownToken  = "down"
)
