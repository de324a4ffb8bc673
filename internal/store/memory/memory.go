// Package memory provides an in-process store used by dev mode and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/toolsascode/lockstep/internal/store"
)

// Store implements store.Store entirely in memory. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	record  store.Record
	exists  bool
	scripts []string
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{}
}

// Load reads the control record, creating it lazily
func (s *Store) Load(ctx context.Context) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	return s.record, nil
}

// AcquireLock atomically flips the lock from false to true
func (s *Store) AcquireLock(ctx context.Context, now time.Time, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()

	if s.record.Locked {
		if lease <= 0 || now.Sub(s.record.LockedAt) < lease {
			return false, nil
		}
	}
	s.record.Locked = true
	s.record.LockedAt = now
	return true, nil
}

// SetVersion unconditionally updates the recorded version
func (s *Store) SetVersion(ctx context.Context, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	s.record.Version = version
	return nil
}

// Unlock unconditionally clears the lock flag
func (s *Store) Unlock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure()
	s.record.Locked = false
	s.record.LockedAt = time.Time{}
	return nil
}

// Reset deletes the control record and all applied scripts
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = store.Record{}
	s.exists = false
	s.scripts = nil
	return nil
}

// Exec records the script as applied
func (s *Store) Exec(ctx context.Context, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, script)
	return nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

// Scripts returns the scripts applied through Exec, in order
func (s *Store) Scripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.scripts))
	copy(out, s.scripts)
	return out
}

// ensure lazily creates the control record. Callers hold the mutex.
func (s *Store) ensure() {
	if !s.exists {
		s.record = store.Record{Version: 0, Locked: false}
		s.exists = true
	}
}
