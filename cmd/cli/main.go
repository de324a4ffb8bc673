package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/toolsascode/lockstep/internal/config"
	"github.com/toolsascode/lockstep/internal/loader"
	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/store"
	"github.com/toolsascode/lockstep/internal/storefactory"
	"github.com/toolsascode/lockstep/migrations"
)

var (
	quiet      bool
	forceReset bool
)

var rootCmd = &cobra.Command{
	Use:   "lockstep",
	Short: "Lockstep - versioned migration runner",
	Long: `Lockstep runs versioned migrations against a configured store.

The store connection is read from LOCKSTEP_* environment variables.
Migration commands take the form "<version>" or "latest", with an
optional rerun of the current version.`,
	Version: "1.0.0",
}

var upCmd = &cobra.Command{
	Use:   "up [version]",
	Short: "Migrate up to a version, or to the latest",
	Long: `Up migrates the store forward. With no argument it migrates to the
highest registered version.

Example:
  lockstep up
  lockstep up 20240101120000`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := "latest"
		if len(args) > 0 {
			command = args[0]
		}
		return runCommand(cmd.Context(), command)
	},
}

var downCmd = &cobra.Command{
	Use:   "down <version>",
	Short: "Migrate down to a version",
	Long: `Down migrates the store backward to the given version. Use 0 to
unwind every migration.

Example:
  lockstep down 20240101120000
  lockstep down 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return runCommand(cmd.Context(), args[0])
	},
}

var gotoCmd = &cobra.Command{
	Use:   "goto <command>",
	Short: "Run a raw migration command",
	Long: `Goto runs a raw migration command string, the same form accepted by
the HTTP API and queue jobs: "<version>|latest" with an optional
",rerun" suffix.

Example:
  lockstep goto latest
  lockstep goto 3,rerun`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd.Context(), args[0])
	},
}

var rerunCmd = &cobra.Command{
	Use:   "rerun [version]",
	Short: "Re-apply the current version's up migration",
	Long: `Rerun re-invokes the up action of the version the store currently
sits at, without changing the recorded version. The version argument is
carried in the command but the current version is always the one replayed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "latest"
		if len(args) > 0 {
			target = args[0]
		}
		return runCommand(cmd.Context(), target+",rerun")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current migration version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, st, err := buildEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		version, err := engine.GetVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(version)
		return nil
	},
}

var migrationsCmd = &cobra.Command{
	Use:   "migrations",
	Short: "List registered migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, st, err := buildEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		current, err := engine.GetVersion(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, m := range engine.Registry().All() {
			if m.Version == migrate.SentinelVersion {
				continue
			}
			marker := ""
			if m.Version <= current {
				marker = "yes"
			}
			if m.Version == current {
				marker = "yes (current)"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, marker)
		}
		return w.Flush()
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Force-release the migration lock",
	Long: `Unlock clears the lock flag on the control record. Use it to recover
after a crashed run left the lock held.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, st, err := buildEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := engine.Unlock(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Lock released")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe the control record",
	Long: `Reset deletes the control record so the next migration starts from
version 0. It does not undo applied migrations; use down for that.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !forceReset {
			return fmt.Errorf("reset is destructive; pass --force to confirm")
		}

		engine, st, err := buildEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := engine.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Control record cleared")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress per-step migration logs")
	resetCmd.Flags().BoolVar(&forceReset, "force", false, "Confirm the destructive reset")

	rootCmd.AddCommand(upCmd, downCmd, gotoCmd, rerunCmd, versionCmd, migrationsCmd, unlockCmd, resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCommand builds an engine from the environment and executes one
// migration command against it.
func runCommand(ctx context.Context, command string) error {
	engine, st, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := engine.MigrateTo(ctx, command); err != nil {
		return err
	}

	version, err := engine.GetVersion(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Store is at version %d\n", version)
	return nil
}

// buildEngine connects the configured store and assembles the engine with
// the compiled-in and file-based migration sets. The caller owns the store.
func buildEngine(ctx context.Context) (*migrate.Engine, store.Store, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	st, err := storefactory.NewStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect store: %w", err)
	}

	registry := migrate.NewRegistry()
	if err := migrations.Register(registry); err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to register migrations: %w", err)
	}

	if cfg.MigrationsPath != "" {
		if _, err := loader.New(cfg.MigrationsPath).Load(registry); err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("failed to load migrations from %s: %w", cfg.MigrationsPath, err)
		}
	}

	opts := []migrate.Option{
		migrate.WithLockLease(cfg.LockLease),
	}
	if quiet {
		opts = append(opts, migrate.WithCurrentVersionLogging(false))
	}

	return migrate.NewEngine(registry, st, opts...), st, nil
}
