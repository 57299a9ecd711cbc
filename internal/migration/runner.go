package migration

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/loykin/schemarun/internal/common"
	"github.com/loykin/schemarun/internal/constants"
	"github.com/loykin/schemarun/internal/driver"
	"github.com/loykin/schemarun/internal/source"
)

// Runner orchestrates migrations over one Source and one Driver, which it
// owns exclusively for its lifetime. Mutating operations serialize through
// the driver lock; Version may run concurrently.
type Runner struct {
	drv driver.Driver
	src source.Source
	log *common.Logger

	prefetch int

	sfg singleflight.Group
	reg atomic.Pointer[Registry]
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger replaces the default logger.
func WithLogger(l *common.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithPrefetch sets how many upcoming script bodies are read ahead of
// execution. Zero disables prefetch.
func WithPrefetch(n int) Option {
	return func(r *Runner) { r.prefetch = n }
}

// NewRunner builds a Runner over a lazy catalog. The catalog is loaded once,
// on first need, inside the lock scope.
func NewRunner(src source.Source, drv driver.Driver, opts ...Option) *Runner {
	r := &Runner{
		drv:      drv,
		src:      src,
		log:      common.GetLogger().WithComponent("runner"),
		prefetch: constants.DefaultPrefetch,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewRunnerWithCatalog builds a Runner over an in-memory catalog, bypassing
// the Source. Useful for embedded migrations with custom actions.
func NewRunnerWithCatalog(migrations []*Migration, drv driver.Driver, opts ...Option) (*Runner, error) {
	reg, err := NewRegistry(migrations)
	if err != nil {
		return nil, err
	}
	r := NewRunner(nil, drv, opts...)
	r.reg.Store(reg)
	return r, nil
}

// Close disposes the driver; any held lock is released first.
func (r *Runner) Close() error {
	return r.drv.Close()
}

// registry returns the memoized catalog index, loading it under a
// single-flight guard so concurrent operations on the same Runner do not race
// the Source.
func (r *Runner) registry(ctx context.Context) (*Registry, error) {
	if reg := r.reg.Load(); reg != nil {
		return reg, nil
	}
	v, err, _ := r.sfg.Do("registry", func() (interface{}, error) {
		if reg := r.reg.Load(); reg != nil {
			return reg, nil
		}
		pairs, err := r.src.Load(ctx)
		if err != nil {
			return nil, err
		}
		ms := make([]*Migration, 0, len(pairs))
		for _, p := range pairs {
			m, err := FromPair(p)
			if err != nil {
				return nil, &source.Error{Err: err}
			}
			ms = append(ms, m)
		}
		reg, err := NewRegistry(ms)
		if err != nil {
			return nil, err
		}
		r.log.Debug("catalog loaded", "migrations", reg.Len())
		r.reg.Store(reg)
		return reg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Registry), nil
}

// withLock brackets fn with the driver lock. The unlock always runs in an
// uncancellable scope; a failed unlock surfaces unless fn already failed.
func (r *Runner) withLock(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if err = r.drv.Lock(ctx); err != nil {
		return err
	}
	defer func() {
		if uerr := r.drv.Unlock(context.WithoutCancel(ctx)); uerr != nil {
			r.log.Error("failed to release database lock", "error", uerr)
			if err == nil {
				err = uerr
			}
		}
	}()
	return fn(ctx)
}

// Up applies all pending migrations.
func (r *Runner) Up(ctx context.Context) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		return r.lockedUp(ctx, 0)
	})
}

// UpN applies up to n pending migrations; n must be positive.
func (r *Runner) UpN(ctx context.Context, n int) error {
	if n <= 0 {
		return ErrStepCount
	}
	return r.withLock(ctx, func(ctx context.Context) error {
		return r.lockedUp(ctx, n)
	})
}

// Down reverts the migration matching the current version.
func (r *Runner) Down(ctx context.Context) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		return r.lockedDown(ctx, 1)
	})
}

// DownN reverts up to n migrations in descending order; n must be positive.
func (r *Runner) DownN(ctx context.Context, n int) error {
	if n <= 0 {
		return ErrStepCount
	}
	return r.withLock(ctx, func(ctx context.Context) error {
		return r.lockedDown(ctx, n)
	})
}

// DownAll reverts every applied migration, back to baseline.
func (r *Runner) DownAll(ctx context.Context) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		return r.lockedDown(ctx, 0)
	})
}

// Steps applies n migrations when n > 0, reverts |n| when n < 0, and is a
// no-op for n == 0.
func (r *Runner) Steps(ctx context.Context, n int) error {
	switch {
	case n > 0:
		return r.UpN(ctx, n)
	case n < 0:
		return r.DownN(ctx, -n)
	default:
		return nil
	}
}

// Goto migrates to version v (0 means baseline). The step count respects
// registry density: missing intermediate versions are not counted and the
// walk never skips past catalog entries.
func (r *Runner) Goto(ctx context.Context, v int64) error {
	if v < 0 {
		return ErrInvalidVersion
	}
	return r.withLock(ctx, func(ctx context.Context) error {
		reg, err := r.registry(ctx)
		if err != nil {
			return err
		}
		st, err := r.drv.State(ctx)
		if err != nil {
			return err
		}
		if st.Dirty {
			return &DirtyError{Version: st.Version}
		}

		target := v
		if target == 0 {
			target = driver.NilVersion
		}
		cur := st.Version
		switch {
		case target == cur:
			return nil
		case target > cur:
			n := reg.CountBetween(cur, target)
			if n == 0 {
				return nil
			}
			return r.lockedUp(ctx, n)
		default:
			upper := cur
			lower := target
			n := reg.CountBetween(lower, upper)
			if n == 0 {
				return nil
			}
			return r.lockedDown(ctx, n)
		}
	})
}

// Force overwrites the recorded state without running any script: v <= 0
// becomes baseline, v > 0 becomes (v, clean). The escape hatch — it does not
// require a clean state.
func (r *Runner) Force(ctx context.Context, v int64) error {
	if v < driver.NilVersion {
		return ErrInvalidVersion
	}
	return r.withLock(ctx, func(ctx context.Context) error {
		st := driver.State{Version: driver.NilVersion}
		if v > 0 {
			st.Version = v
		}
		if err := r.drv.SetState(ctx, st); err != nil {
			return err
		}
		r.log.Info("forced version", "state", st.String())
		return nil
	})
}

// Drop deletes every object in the driver's namespace. A dirty state refuses
// unless force is set; the dirty flag is cleared (version preserved) before
// dropping, and the final state is baseline.
func (r *Runner) Drop(ctx context.Context, force bool) error {
	return r.withLock(ctx, func(ctx context.Context) error {
		st, err := r.drv.State(ctx)
		if err != nil {
			return err
		}
		if st.Dirty {
			if !force {
				return &DirtyError{Version: st.Version}
			}
			if err := r.drv.SetState(ctx, driver.State{Version: st.Version, Dirty: false}); err != nil {
				return err
			}
		}
		if err := r.drv.Drop(ctx); err != nil {
			return err
		}
		if err := r.drv.SetState(context.WithoutCancel(ctx), driver.State{Version: driver.NilVersion}); err != nil {
			return err
		}
		r.log.Info("dropped all objects")
		return nil
	})
}

// Version reads the current state without taking the lock.
func (r *Runner) Version(ctx context.Context) (driver.State, error) {
	return r.drv.State(ctx)
}

// lockedUp assumes the lock is held. limit <= 0 applies everything pending.
func (r *Runner) lockedUp(ctx context.Context, limit int) error {
	reg, err := r.registry(ctx)
	if err != nil {
		return err
	}
	st, err := r.drv.State(ctx)
	if err != nil {
		return err
	}
	if st.Dirty {
		return &DirtyError{Version: st.Version}
	}
	pending := reg.NextAfter(st.Version, limit)
	if len(pending) == 0 {
		r.log.Debug("no pending migrations", "current", st.String())
		return nil
	}
	r.preload(pending, source.DirectionUp)
	for _, m := range pending {
		if err := r.applyStep(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// lockedDown assumes the lock is held. limit <= 0 reverts everything applied.
func (r *Runner) lockedDown(ctx context.Context, limit int) error {
	reg, err := r.registry(ctx)
	if err != nil {
		return err
	}
	st, err := r.drv.State(ctx)
	if err != nil {
		return err
	}
	if st.Dirty {
		return &DirtyError{Version: st.Version}
	}
	if !st.HasVersion() {
		r.log.Debug("nothing to revert: baseline")
		return nil
	}
	if _, ok := reg.Get(st.Version); !ok {
		return &MissingMigrationError{Version: st.Version}
	}
	batch := reg.AtOrBelow(st.Version, limit)
	r.preload(batch, source.DirectionDown)
	for _, m := range batch {
		if err := r.revertStep(ctx, reg, m); err != nil {
			return err
		}
	}
	return nil
}

// applyStep runs one forward step under the dirty-state protocol: the
// in-flight mark is durably visible before the action starts, and on any
// failure (including cancellation) it is re-asserted before the error
// propagates.
func (r *Runner) applyStep(ctx context.Context, m *Migration) error {
	detached := context.WithoutCancel(ctx)
	if err := r.drv.SetState(detached, driver.State{Version: m.Version, Dirty: true}); err != nil {
		return err
	}
	r.log.Info("applying migration", "version", m.Version, "description", m.Description)
	if err := m.Apply(ctx, r.drv); err != nil {
		_ = r.drv.SetState(detached, driver.State{Version: m.Version, Dirty: true})
		if isCancellation(err) {
			return err
		}
		return &FailedError{Version: m.Version, Description: m.Description, Direction: source.DirectionUp, Err: err}
	}
	return r.drv.SetState(detached, driver.State{Version: m.Version, Dirty: false})
}

// revertStep runs one rollback step. On success the recorded version is the
// registry-predecessor of m, which is baseline when m is the first entry.
func (r *Runner) revertStep(ctx context.Context, reg *Registry, m *Migration) error {
	detached := context.WithoutCancel(ctx)
	if err := r.drv.SetState(detached, driver.State{Version: m.Version, Dirty: true}); err != nil {
		return err
	}
	r.log.Info("reverting migration", "version", m.Version, "description", m.Description)
	if err := m.Revert(ctx, r.drv); err != nil {
		_ = r.drv.SetState(detached, driver.State{Version: m.Version, Dirty: true})
		if isCancellation(err) {
			return err
		}
		return &FailedError{Version: m.Version, Description: m.Description, Direction: source.DirectionDown, Err: err}
	}
	return r.drv.SetState(detached, driver.State{Version: reg.PreviousOf(m.Version), Dirty: false})
}

// preload reads the first prefetch script bodies into memory so slow storage
// does not stall the datastore mid-step. Failures are deferred to execution,
// where they surface with full context.
func (r *Runner) preload(batch []*Migration, dir source.Direction) {
	if r.prefetch <= 0 {
		return
	}
	n := r.prefetch
	if n > len(batch) {
		n = len(batch)
	}
	for _, m := range batch[:n] {
		if err := m.Preload(dir); err != nil {
			r.log.Debug("prefetch failed", "version", m.Version, "error", err)
		}
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
