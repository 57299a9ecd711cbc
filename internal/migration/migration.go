package migration

import (
	"context"
	"fmt"

	"github.com/loykin/schemarun/internal/driver"
	"github.com/loykin/schemarun/internal/source"
)

// Action is one direction of a migration, bound to a driver at run time.
type Action func(ctx context.Context, d driver.Driver) error

// Migration is an immutable catalog entry: a positive version, a description
// and the apply/revert actions.
type Migration struct {
	Version     int64
	Description string

	apply  Action
	revert Action

	// pair is set for script-backed migrations and enables body prefetch.
	pair *source.Pair
}

// New builds a migration from explicit actions. revert may be nil for
// irreversible migrations.
func New(version int64, description string, apply, revert Action) (*Migration, error) {
	if version <= 0 {
		return nil, fmt.Errorf("migration version must be positive, got %d", version)
	}
	if apply == nil {
		return nil, fmt.Errorf("migration %d has no apply action", version)
	}
	return &Migration{Version: version, Description: description, apply: apply, revert: revert}, nil
}

// FromPair binds a source script pair to script-driver execution. The driver
// capability is checked at apply time, so a catalog can be loaded against any
// Driver and only fails when a script actually needs to run.
func FromPair(p *source.Pair) (*Migration, error) {
	apply := scriptAction(p.Up)
	var revert Action
	if p.Down != nil {
		revert = scriptAction(p.Down)
	}
	m, err := New(p.Version, p.Description, apply, revert)
	if err != nil {
		return nil, err
	}
	m.pair = p
	return m, nil
}

func scriptAction(sc *source.Script) Action {
	return func(ctx context.Context, d driver.Driver) error {
		sd, ok := d.(driver.ScriptDriver)
		if !ok {
			return fmt.Errorf("driver does not support script execution (needed by %s)", sc.Path)
		}
		return sd.ExecScript(ctx, sc)
	}
}

// Apply runs the forward action.
func (m *Migration) Apply(ctx context.Context, d driver.Driver) error {
	return m.apply(ctx, d)
}

// Revert runs the rollback action.
func (m *Migration) Revert(ctx context.Context, d driver.Driver) error {
	if m.revert == nil {
		return fmt.Errorf("migration %d (%s) has no down migration", m.Version, m.Description)
	}
	return m.revert(ctx, d)
}

// Reversible reports whether a revert action exists.
func (m *Migration) Reversible() bool { return m.revert != nil }

// Preload reads the script body for the given direction into memory, so the
// datastore lock is not held up by slow storage mid-step. No-op for
// migrations without scripts.
func (m *Migration) Preload(dir source.Direction) error {
	if m.pair == nil {
		return nil
	}
	var sc *source.Script
	switch dir {
	case source.DirectionUp:
		sc = m.pair.Up
	case source.DirectionDown:
		sc = m.pair.Down
	}
	if sc == nil {
		return nil
	}
	_, err := sc.Body()
	return err
}

func (m *Migration) String() string {
	return fmt.Sprintf("%d_%s", m.Version, m.Description)
}
