// Package postgresql implements the store on PostgreSQL. The control record
// is a single row in a dedicated table; lock acquisition is a conditional
// UPDATE whose affected-row count decides the winner.
package postgresql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toolsascode/lockstep/internal/store"
)

// DefaultTable is the default name of the control table
const DefaultTable = "lockstep_control"

// Store implements store.Store for PostgreSQL
type Store struct {
	pool  *pgxpool.Pool
	table string
}

// New connects to PostgreSQL and ensures the control table exists. An empty
// table name selects DefaultTable.
func New(ctx context.Context, connString, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	s := &Store{pool: pool, table: table}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the control table if needed
func (s *Store) initialize(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id        TEXT PRIMARY KEY,
			version   BIGINT NOT NULL DEFAULT 0,
			locked    BOOLEAN NOT NULL DEFAULT FALSE,
			locked_at TIMESTAMPTZ
		)
	`, quoteIdentifier(s.table))

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create control table: %w", err)
	}
	return nil
}

// Load reads the control record, creating it lazily
func (s *Store) Load(ctx context.Context) (store.Record, error) {
	insert := fmt.Sprintf(
		"INSERT INTO %s (id, version, locked) VALUES ($1, 0, FALSE) ON CONFLICT (id) DO NOTHING",
		quoteIdentifier(s.table),
	)
	if _, err := s.pool.Exec(ctx, insert, store.ControlKey); err != nil {
		return store.Record{}, fmt.Errorf("failed to create control record: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT version, locked, locked_at FROM %s WHERE id = $1",
		quoteIdentifier(s.table),
	)

	var rec store.Record
	var lockedAt *time.Time
	err := s.pool.QueryRow(ctx, query, store.ControlKey).Scan(&rec.Version, &rec.Locked, &lockedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return store.Record{}, fmt.Errorf("control record missing after upsert")
		}
		return store.Record{}, fmt.Errorf("failed to read control record: %w", err)
	}
	if lockedAt != nil {
		rec.LockedAt = *lockedAt
	}
	return rec, nil
}

// AcquireLock flips the lock via a conditional UPDATE. Exactly one of any
// number of racing callers observes an affected row.
func (s *Store) AcquireLock(ctx context.Context, now time.Time, lease time.Duration) (bool, error) {
	if _, err := s.Load(ctx); err != nil {
		return false, err
	}

	condition := "locked = FALSE"
	args := []interface{}{store.ControlKey, now}
	if lease > 0 {
		condition = "(locked = FALSE OR locked_at < $3)"
		args = append(args, now.Add(-lease))
	}

	query := fmt.Sprintf(
		"UPDATE %s SET locked = TRUE, locked_at = $2 WHERE id = $1 AND %s",
		quoteIdentifier(s.table), condition,
	)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetVersion unconditionally updates the recorded version
func (s *Store) SetVersion(ctx context.Context, version int64) error {
	query := fmt.Sprintf(
		"UPDATE %s SET version = $2 WHERE id = $1",
		quoteIdentifier(s.table),
	)
	if _, err := s.pool.Exec(ctx, query, store.ControlKey, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}

// Unlock unconditionally clears the lock flag
func (s *Store) Unlock(ctx context.Context) error {
	query := fmt.Sprintf(
		"UPDATE %s SET locked = FALSE, locked_at = NULL WHERE id = $1",
		quoteIdentifier(s.table),
	)
	if _, err := s.pool.Exec(ctx, query, store.ControlKey); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Reset deletes all rows in the control table
func (s *Store) Reset(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", quoteIdentifier(s.table))
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to reset control table: %w", err)
	}
	return nil
}

// Exec runs a migration script inside a transaction
func (s *Store) Exec(ctx context.Context, script string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, script); err != nil {
		return fmt.Errorf("failed to execute migration script: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration script: %w", err)
	}
	return nil
}

// Ping verifies the backend is accessible
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// quoteIdentifier quotes a PostgreSQL identifier
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
