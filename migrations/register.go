// Package migrations holds the migration set compiled into the binaries.
// Each migration is a plain Go function pair so it can run against any
// configured store; script-file migrations are registered separately by the
// loader when LOCKSTEP_MIGRATIONS_PATH is set.
package migrations

import (
	"context"

	"github.com/toolsascode/lockstep/internal/logger"
	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/store"
)

// Register adds the compiled-in migration set to the registry
func Register(reg *migrate.Registry) error {
	for _, m := range all {
		if err := reg.Add(m); err != nil {
			return err
		}
	}
	return nil
}

var all = []migrate.Migration{
	{
		Version: 1,
		Name:    "create accounts table",
		Up: func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
			return st.Exec(ctx, `CREATE TABLE IF NOT EXISTS accounts (
				id BIGSERIAL PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
		},
		Down: func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
			return st.Exec(ctx, `DROP TABLE IF EXISTS accounts`)
		},
	},
	{
		Version: 2,
		Name:    "add accounts status column",
		Up: func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
			return st.Exec(ctx, `ALTER TABLE accounts ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'active'`)
		},
		Down: func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
			return st.Exec(ctx, `ALTER TABLE accounts DROP COLUMN IF EXISTS status`)
		},
	},
	{
		Version: 3,
		Name:    "create audit log table",
		Up: func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
			log(logger.INFO, "creating audit log table")
			return st.Exec(ctx, `CREATE TABLE IF NOT EXISTS audit_log (
				id BIGSERIAL PRIMARY KEY,
				account_id BIGINT REFERENCES accounts(id),
				action TEXT NOT NULL,
				occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
		},
		Down: func(ctx context.Context, st store.Store, log migrate.LogFunc) error {
			return st.Exec(ctx, `DROP TABLE IF EXISTS audit_log`)
		},
	},
}
