package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/schemarun"
	"github.com/loykin/schemarun/cmd/schemarun/config"
	"github.com/loykin/schemarun/internal/common"
	"github.com/loykin/schemarun/internal/constants"
)

// UsageError marks a caller mistake so main can map it to exit code 2.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

func usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// settings is the resolved CLI configuration: config document values with
// flag/env overrides applied on top.
type settings struct {
	Source      string
	Database    string
	Table       string
	LockTimeout time.Duration
	Prefetch    int

	DisableTx             bool
	MultiStatement        bool
	MultiStatementMaxSize int
}

func resolveSettings() (*settings, error) {
	v := viper.GetViper()

	var doc config.Doc
	if path := strings.TrimSpace(v.GetString("config")); path != "" {
		if err := doc.Load(path); err != nil {
			return nil, err
		}
	}

	if v.GetBool("verbose") {
		common.SetDefaultLogger(common.NewLogger(common.LogLevelDebug))
	} else if doc.Logging.Level != "" {
		level := common.ParseLogLevel(doc.Logging.Level)
		if doc.Logging.Format == "json" {
			common.SetDefaultLogger(common.NewJSONLogger(level))
		} else {
			common.SetDefaultLogger(common.NewLogger(level))
		}
	}

	s := &settings{
		Source:                firstNonEmpty(v.GetString("source"), doc.Source),
		Database:              firstNonEmpty(v.GetString("database"), doc.Database),
		Table:                 doc.MigrationsTable,
		Prefetch:              v.GetInt("prefetch"),
		DisableTx:             doc.DisableTx,
		MultiStatement:        doc.MultiStatement,
		MultiStatementMaxSize: doc.MultiStatementMaxSize,
	}
	// the config document fills in anything left at the built-in default
	if s.Prefetch == constants.DefaultPrefetch && doc.Prefetch > 0 {
		s.Prefetch = doc.Prefetch
	}
	s.LockTimeout = v.GetDuration("lock_timeout")
	t, err := doc.LockTimeoutDuration()
	if err != nil {
		return nil, err
	}
	if s.LockTimeout == constants.DefaultLockTimeout && t > 0 {
		s.LockTimeout = t
	}
	return s, nil
}

func firstNonEmpty(vals ...string) string {
	for _, s := range vals {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// openRunner resolves settings, opens the driver for the database URL and
// builds a Runner over the file source. The returned runner owns the driver;
// callers must Close it.
func openRunner(ctx context.Context) (*schemarun.Runner, error) {
	s, err := resolveSettings()
	if err != nil {
		return nil, err
	}
	if s.Source == "" {
		return nil, usagef("no migration source given (use --source or a config file)")
	}
	if s.Database == "" {
		return nil, usagef("no database given (use --database or a config file)")
	}
	drv, err := openDriver(ctx, s)
	if err != nil {
		return nil, err
	}
	src := schemarun.NewFileSource(s.Source)
	return schemarun.New(src, drv, schemarun.WithPrefetch(s.Prefetch)), nil
}
