package migrate

import (
	"context"

	"github.com/toolsascode/lockstep/internal/logger"
	"github.com/toolsascode/lockstep/internal/store"
)

// Direction selects which of a migration's two actions is invoked.
type Direction int

const (
	// DirectionUp transforms the store from the predecessor version's
	// state to this migration's state.
	DirectionUp Direction = iota

	// DirectionDown reverses the migration's up action.
	DirectionDown
)

// String returns the direction name
func (d Direction) String() string {
	if d == DirectionDown {
		return "down"
	}
	return "up"
}

// LogFunc is the logging sink the engine and migration actions write to.
// A nil sink disables logging.
type LogFunc func(level logger.Level, args ...interface{})

// Action is one half of a migration. It receives the store handle and the
// configured logger and is trusted to be atomic or idempotent; the engine
// provides no additional transactional scope around it.
type Action func(ctx context.Context, st store.Store, log LogFunc) error

// Migration is a single versioned, reversible transformation. Migrations
// are copied on registration and immutable afterwards.
type Migration struct {
	// Version is the total order key. Must be a positive integer, unique
	// across the registry. Version 0 is reserved for the baseline sentinel.
	Version int64

	// Name is an optional display label with no semantic effect.
	Name string

	// Up moves the store from the predecessor version (in sorted order)
	// to Version.
	Up Action

	// Down reverses Up. Nil only on the baseline sentinel, for which
	// descending past version 0 is never valid.
	Down Action
}

// action returns the action for the given direction, which may be nil when
// the direction is unsupported.
func (m Migration) action(d Direction) Action {
	if d == DirectionDown {
		return m.Down
	}
	return m.Up
}
