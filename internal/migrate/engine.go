package migrate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/toolsascode/lockstep/internal/logger"
	"github.com/toolsascode/lockstep/internal/store"
)

// Engine drives the registry to walk a store from its current version to a
// requested target version, one step at a time, under the control record's
// exclusive lock. Operations are logically sequential per engine instance;
// mutual exclusion across processes is enforced solely by the persisted
// lock flag.
type Engine struct {
	registry   *Registry
	store      store.Store
	log        LogFunc
	logCurrent bool
	lease      time.Duration
	now        func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logging sink. A nil sink disables logging.
func WithLogger(log LogFunc) Option {
	return func(e *Engine) {
		if log == nil {
			log = func(level logger.Level, args ...interface{}) {}
		}
		e.log = log
	}
}

// WithCurrentVersionLogging controls whether a no-op walk logs
// "already at version N".
func WithCurrentVersionLogging(enabled bool) Option {
	return func(e *Engine) {
		e.logCurrent = enabled
	}
}

// WithLockLease allows lock acquisition to claim a lock whose holder
// stamped it longer than the lease ago. The default of zero never takes
// over a held lock; recovery from a crashed holder is then the Unlock
// escape hatch.
func WithLockLease(lease time.Duration) Option {
	return func(e *Engine) {
		e.lease = lease
	}
}

// WithClock overrides the engine's time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine binds a registry to a store handle. The store handle must
// already be live; the engine never establishes connections itself.
func NewEngine(registry *Registry, st store.Store, opts ...Option) *Engine {
	e := &Engine{
		registry:   registry,
		store:      st,
		log:        logger.Log,
		logCurrent: true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's migration registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// MigrateTo executes a migration command of the form
// "<version>|latest"[,"rerun"]. "latest" resolves to the highest version in
// the registry. With the rerun modifier the current version's up action is
// re-invoked in place, without walking and without changing the recorded
// version; the resolved target is deliberately ignored on that path.
//
// When the lock is already held elsewhere the call is a successful no-op.
// Any step failure is logged and returned unchanged; the control record
// stays at the last durably committed version.
func (e *Engine) MigrateTo(ctx context.Context, command string) error {
	if e.store == nil {
		return &NotConfiguredError{}
	}

	cmd, err := ParseCommand(command)
	if err != nil {
		return err
	}

	if cmd.Rerun {
		return e.rerun(ctx)
	}

	target := cmd.Version
	if cmd.Latest {
		target = e.registry.Latest()
	}
	return e.walk(ctx, target)
}

// MigrateToVersion walks to an explicit target version.
func (e *Engine) MigrateToVersion(ctx context.Context, version int64) error {
	if e.store == nil {
		return &NotConfiguredError{}
	}
	return e.walk(ctx, version)
}

// GetVersion returns the control record's current version, creating the
// record at version 0 if absent.
func (e *Engine) GetVersion(ctx context.Context) (int64, error) {
	if e.store == nil {
		return 0, &NotConfiguredError{}
	}
	rec, err := e.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	return rec.Version, nil
}

// GetNumberOfMigrations returns the count of real migrations in the
// registry, excluding the baseline sentinel.
func (e *Engine) GetNumberOfMigrations() int {
	return e.registry.Count()
}

// Unlock force-clears the lock flag, bypassing the conditional check. It is
// the operator escape hatch for recovering a permanently locked record left
// behind by a crashed run. No version change.
func (e *Engine) Unlock(ctx context.Context) error {
	if e.store == nil {
		return &NotConfiguredError{}
	}
	return e.store.Unlock(ctx)
}

// Reset clears the registry back to the sentinel and deletes the control
// record. Dev/test only.
func (e *Engine) Reset(ctx context.Context) error {
	if e.store == nil {
		return &NotConfiguredError{}
	}
	e.registry.Reset()
	return e.store.Reset(ctx)
}

// Ping verifies the bound store is reachable
func (e *Engine) Ping(ctx context.Context) error {
	if e.store == nil {
		return &NotConfiguredError{}
	}
	return e.store.Ping(ctx)
}

// walk runs the step-walking protocol from the record's current version to
// the target version.
func (e *Engine) walk(ctx context.Context, target int64) error {
	rec, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load control record: %w", err)
	}

	acquired, err := e.store.AcquireLock(ctx, e.now(), e.lease)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		// Someone else is migrating. Contention is not a failure.
		e.log(logger.INFO, "migration lock is held elsewhere, skipping")
		return nil
	}

	current := rec.Version
	if current == target {
		if e.logCurrent {
			e.log(logger.INFO, fmt.Sprintf("already at version %d", target))
		}
		return e.store.Unlock(ctx)
	}

	seq := e.registry.All()
	currentIdx, err := indexOf(seq, current)
	if err != nil {
		return e.abort(ctx, err)
	}
	targetIdx, err := indexOf(seq, target)
	if err != nil {
		return e.abort(ctx, err)
	}

	if target > current {
		err = e.walkUp(ctx, seq, currentIdx, targetIdx)
	} else {
		err = e.walkDown(ctx, seq, currentIdx, targetIdx)
	}
	if err != nil {
		return err
	}

	e.log(logger.INFO, fmt.Sprintf("migrated from version %d to %d", current, target))
	return e.store.Unlock(ctx)
}

// walkUp invokes each intervening up action in ascending order, persisting
// the new current version after every successful step so partial progress
// survives a crash.
func (e *Engine) walkUp(ctx context.Context, seq []Migration, currentIdx, targetIdx int) error {
	for i := currentIdx + 1; i <= targetIdx; i++ {
		from, to := seq[i-1].Version, seq[i].Version
		e.log(logger.INFO, fmt.Sprintf("migrating up %d -> %d", from, to))

		if err := e.step(ctx, seq[i], DirectionUp, from, to); err != nil {
			e.log(logger.ERROR, err.Error())
			return e.abort(ctx, err)
		}
		if err := e.store.SetVersion(ctx, to); err != nil {
			return e.abort(ctx, fmt.Errorf("failed to persist version %d: %w", to, err))
		}
	}
	return nil
}

// walkDown invokes each intervening down action in descending order. Index
// 0 (the sentinel) is the terminal valid case; the walk never attempts to
// go below it.
func (e *Engine) walkDown(ctx context.Context, seq []Migration, currentIdx, targetIdx int) error {
	for i := currentIdx; i > targetIdx; i-- {
		from, to := seq[i].Version, seq[i-1].Version
		e.log(logger.INFO, fmt.Sprintf("migrating down %d -> %d", from, to))

		if err := e.step(ctx, seq[i], DirectionDown, from, to); err != nil {
			e.log(logger.ERROR, err.Error())
			return e.abort(ctx, err)
		}
		if err := e.store.SetVersion(ctx, to); err != nil {
			return e.abort(ctx, fmt.Errorf("failed to persist version %d: %w", to, err))
		}
	}
	return nil
}

// rerun re-invokes the up action of whatever version the control record
// currently holds. It does not verify the resolved target against the
// current version and never changes the recorded version.
func (e *Engine) rerun(ctx context.Context) error {
	rec, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load control record: %w", err)
	}

	acquired, err := e.store.AcquireLock(ctx, e.now(), e.lease)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		e.log(logger.INFO, "migration lock is held elsewhere, skipping")
		return nil
	}

	m, err := e.registry.FindByVersion(rec.Version)
	if err != nil {
		return e.abort(ctx, err)
	}

	e.log(logger.INFO, fmt.Sprintf("rerunning migration %d", rec.Version))
	if err := e.step(ctx, m, DirectionUp, rec.Version, rec.Version); err != nil {
		e.log(logger.ERROR, err.Error())
		return e.abort(ctx, err)
	}
	return e.store.Unlock(ctx)
}

// step invokes one action, checking direction support before invoking.
func (e *Engine) step(ctx context.Context, m Migration, d Direction, from, to int64) error {
	action := m.action(d)
	if action == nil {
		return &DirectionUnsupportedError{Version: m.Version, Direction: d}
	}
	if err := action(ctx, e.store, e.log); err != nil {
		return &StepExecutionError{From: from, To: to, Direction: d, Err: err}
	}
	return nil
}

// abort releases the lock so a future call is not permanently blocked and
// propagates the failure unchanged.
func (e *Engine) abort(ctx context.Context, err error) error {
	if uerr := e.store.Unlock(ctx); uerr != nil {
		e.log(logger.ERROR, fmt.Sprintf("failed to release migration lock: %v", uerr))
	}
	return err
}

// indexOf locates a version within a registry snapshot.
func indexOf(seq []Migration, version int64) (int, error) {
	i := sort.Search(len(seq), func(i int) bool {
		return seq[i].Version >= version
	})
	if i >= len(seq) || seq[i].Version != version {
		return 0, &NotFoundError{Version: version}
	}
	return i, nil
}
