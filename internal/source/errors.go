package source

import "fmt"

// Error wraps any failure to load or validate a catalog.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("source: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// DuplicatePairError reports two scripts of the same direction sharing a version.
type DuplicatePairError struct {
	Version   int64
	Direction Direction
	PathA     string
	PathB     string
}

func (e *DuplicatePairError) Error() string {
	return fmt.Sprintf("duplicate %s migration for version %d: %s and %s",
		e.Direction, e.Version, e.PathA, e.PathB)
}

// MissingUpError reports a version that has a down script but no up script.
type MissingUpError struct {
	Version int64
	Path    string
}

func (e *MissingUpError) Error() string {
	return fmt.Sprintf("version %d has no up migration (found %s)", e.Version, e.Path)
}
