package mysql

import (
	"fmt"
	"strings"
	"time"

	"github.com/loykin/schemarun/internal/constants"
)

const DriverName = "mysql"

// Config carries connection and behavior settings for the mysql driver.
type Config struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`

	MigrationsTable string `mapstructure:"migrations_table"`

	// DisableTx executes scripts outside a transaction. Note MySQL DDL
	// implicitly commits, so transactions only protect DML scripts.
	DisableTx bool `mapstructure:"disable_tx"`

	MultiStatement        bool `mapstructure:"multi_statement"`
	MultiStatementMaxSize int  `mapstructure:"multi_statement_max_size"`

	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// ToMap flattens the config for the generic driver loader.
func (c *Config) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"dsn":                      c.dsn(),
		"migrations_table":         c.MigrationsTable,
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
			port = constants.DefaultMySQLPort
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			strings.TrimSpace(c.User), strings.TrimSpace(c.Password),
			strings.TrimSpace(c.Host), port, strings.TrimSpace(c.DBName),
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
