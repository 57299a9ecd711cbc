package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/schemarun/internal/constants"
)

const DriverName = "sqlite"

// Config carries connection and behavior settings for the sqlite driver.
type Config struct {
	// Path is the database file; :memory: works for tests.
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`

	MigrationsTable string `mapstructure:"migrations_table"`

	// DisableTx executes scripts outside a transaction.
	DisableTx bool `mapstructure:"disable_tx"`

	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// ToMap flattens the config for the generic driver loader.
func (c *Config) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"dsn":              c.dsn(),
		"migrations_table": c.MigrationsTable,
		"disable_tx":       c.DisableTx,
		"lock_timeout":     c.LockTimeout,
	}
}

func (c *Config) dsn() string {
	dsn := strings.TrimSpace(c.DSN)
	if dsn == "" && strings.TrimSpace(c.Path) != "" {
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_fk=1", strings.TrimSpace(c.Path))
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
}
