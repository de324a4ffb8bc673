package migrate

import (
	"context"
	"sort"
	"sync"

	"github.com/toolsascode/lockstep/internal/store"
)

// SentinelVersion is the version of the implicit baseline migration
// representing the "no migrations applied" state.
const SentinelVersion int64 = 0

// Registry holds the ordered set of migrations, keyed uniquely by version.
// It always contains the version-0 sentinel, whose up action is a no-op and
// whose down action is unsupported (there is nothing below zero).
type Registry struct {
	mu         sync.RWMutex
	migrations []Migration // sorted ascending by version; [0] is the sentinel
}

// NewRegistry creates a registry containing only the baseline sentinel.
func NewRegistry() *Registry {
	return &Registry{
		migrations: []Migration{sentinel()},
	}
}

// sentinel builds the implicit version-0 migration
func sentinel() Migration {
	return Migration{
		Version: SentinelVersion,
		Name:    "baseline",
		Up: func(ctx context.Context, st store.Store, log LogFunc) error {
			return nil
		},
		// Down stays nil: descending past version 0 is never valid.
	}
}

// Add validates and inserts a migration, keeping the sequence sorted
// ascending by version. The migration is copied on insertion and frozen;
// a failed Add leaves the registry unchanged.
func (r *Registry) Add(m Migration) error {
	if m.Up == nil || m.Down == nil {
		return &ValidationError{Reason: "up and down actions are required"}
	}
	if m.Version <= 0 {
		return &ValidationError{Reason: "version must be a positive integer"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.search(m.Version)
	if i < len(r.migrations) && r.migrations[i].Version == m.Version {
		return &ValidationError{Reason: "duplicate version"}
	}

	r.migrations = append(r.migrations, Migration{})
	copy(r.migrations[i+1:], r.migrations[i:])
	r.migrations[i] = m
	return nil
}

// FindByVersion returns the migration carrying exactly the given version.
func (r *Registry) FindByVersion(version int64) (Migration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, err := r.indexOf(version)
	if err != nil {
		return Migration{}, err
	}
	return r.migrations[i], nil
}

// Count returns the number of real migrations, excluding the sentinel.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.migrations) - 1
}

// Latest returns the highest registered version, or 0 when only the
// sentinel is present.
func (r *Registry) Latest() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.migrations[len(r.migrations)-1].Version
}

// Reset discards all registered migrations except the sentinel. It does not
// touch the control record; used by dev/test harnesses.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrations = []Migration{sentinel()}
}

// All returns a copy of the ordered sequence, sentinel included.
func (r *Registry) All() []Migration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Migration, len(r.migrations))
	copy(out, r.migrations)
	return out
}

// search returns the insertion index for a version. Callers hold the lock.
func (r *Registry) search(version int64) int {
	return sort.Search(len(r.migrations), func(i int) bool {
		return r.migrations[i].Version >= version
	})
}

// indexOf returns the index of an exactly matching version. Callers hold
// the lock.
func (r *Registry) indexOf(version int64) (int, error) {
	i := r.search(version)
	if i >= len(r.migrations) || r.migrations[i].Version != version {
		return 0, &NotFoundError{Version: version}
	}
	return i, nil
}
