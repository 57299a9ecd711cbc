package migration

import (
	"errors"
	"fmt"

	"github.com/loykin/schemarun/internal/source"
)

// Argument errors; not retryable.
var (
	ErrStepCount      = errors.New("step count must be positive")
	ErrInvalidVersion = errors.New("invalid target version (Force takes -1 or above, Goto 0 or above)")
)

// DirtyError is the precondition failure on Up/Down/Goto and Drop without
// force: the recorded state says a migration began but never completed.
// Recovery is operator-driven via Force (or Drop with force).
type DirtyError struct {
	Version int64
}

func (e *DirtyError) Error() string {
	return fmt.Sprintf("database is dirty at version %d: fix and force the version", e.Version)
}

// DuplicateVersionError reports a catalog with two migrations sharing a version.
type DuplicateVersionError struct {
	Version int64
	A, B    string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("duplicate migration version %d (%s, %s)", e.Version, e.A, e.B)
}

// MissingMigrationError reports a datastore version with no catalog entry.
// Fatal to Down; requires operator intervention via Force.
type MissingMigrationError struct {
	Version int64
}

func (e *MissingMigrationError) Error() string {
	return fmt.Sprintf("no migration found for version %d", e.Version)
}

// FailedError wraps a migration action that raised. The dirty flag stays set;
// the step is never retried automatically.
type FailedError struct {
	Version     int64
	Description string
	Direction   source.Direction
	Err         error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("migration %d_%s (%s) failed: %v", e.Version, e.Description, e.Direction, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }
