package postgresql

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/schemarun/internal/constants"
)

const DriverName = "postgresql"

// Config carries connection and behavior settings for the postgres driver.
type Config struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	// MigrationsTable and MigrationsSchema default to schema_migrations in
	// the session's current schema.
	MigrationsTable  string `mapstructure:"migrations_table"`
	MigrationsSchema string `mapstructure:"migrations_schema"`

	// DisableTx executes scripts outside a transaction. Postgres DDL is
	// transactional, so the default wraps each script.
	DisableTx bool `mapstructure:"disable_tx"`

	// MultiStatement splits the script on statement terminators before
	// execution; MultiStatementMaxSize bounds a single statement.
	MultiStatement        bool `mapstructure:"multi_statement"`
	MultiStatementMaxSize int  `mapstructure:"multi_statement_max_size"`

	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// ToMap flattens the config for the generic driver loader. An explicit DSN
// wins; otherwise one is assembled from components when a host is given.
func (c *Config) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"dsn":                      c.dsn(),
		"migrations_table":         c.MigrationsTable,
		"migrations_schema":        c.MigrationsSchema,
		"disable_tx":               c.DisableTx,
		"multi_statement":          c.MultiStatement,
		"multi_statement_max_size": c.MultiStatementMaxSize,
		"lock_timeout":             c.LockTimeout,
	}
}

func (c *Config) dsn() string {
	dsn := strings.TrimSpace(c.DSN)
	if dsn == "" && strings.TrimSpace(c.Host) != "" {
		port := c.Port
		if port == 0 {
			port = constants.DefaultPostgresPort
		}
		ssl := strings.TrimSpace(c.SSLMode)
		if ssl == "" {
			ssl = constants.DefaultPostgresSSLMode
		}
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			strings.TrimSpace(c.User), strings.TrimSpace(c.Password),
			strings.TrimSpace(c.Host), port, strings.TrimSpace(c.DBName), ssl,
		)
	}
	return dsn
}

func (c *Config) withDefaults() {
	if c.MigrationsTable == "" {
		c.MigrationsTable = constants.DefaultMigrationsTable
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = constants.DefaultLockTimeout
	}
	if c.MultiStatementMaxSize <= 0 {
		c.MultiStatementMaxSize = constants.DefaultMultiStatementMaxSize
	}
}
