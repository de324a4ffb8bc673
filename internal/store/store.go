package store

import (
	"context"
	"time"
)

// ControlKey is the well-known identifier of the control record within a
// store namespace. Every backend keeps exactly one record under this key.
const ControlKey = "control"

// Record is the control record: the single durable row tracking the last
// fully applied migration version and the cross-process lock.
type Record struct {
	Version  int64
	Locked   bool
	LockedAt time.Time // zero when the lock has never been held
}

// Store is the persistence boundary the migration engine drives. The engine
// owns the control record exclusively; migration actions reach the same
// store through Exec.
type Store interface {
	// Load reads the control record, creating it as {version: 0,
	// locked: false} if it does not exist yet.
	Load(ctx context.Context) (Record, error)

	// AcquireLock atomically flips the lock from false to true and stamps
	// lockedAt. It reports false when another holder already owns the lock.
	// A non-zero lease additionally allows claiming a record whose lockedAt
	// is older than the lease (crashed-holder takeover); zero preserves the
	// lock until an explicit Unlock.
	AcquireLock(ctx context.Context, now time.Time, lease time.Duration) (bool, error)

	// SetVersion unconditionally updates the recorded version. The lock
	// flag is left untouched.
	SetVersion(ctx context.Context, version int64) error

	// Unlock unconditionally clears the lock flag, bypassing the
	// conditional check. No version change.
	Unlock(ctx context.Context) error

	// Reset deletes everything in the store's namespace, control record
	// included. Dev/test only.
	Reset(ctx context.Context) error

	// Exec runs a migration script body against the backend. The script
	// dialect is backend-specific (SQL for relational stores, JSON
	// operations for key-value and document stores).
	Exec(ctx context.Context, script string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
