package migrations

import (
	"context"
	"testing"

	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/store/memory"
)

func TestRegister(t *testing.T) {
	reg := migrate.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if got := reg.Count(); got != len(all) {
		t.Errorf("Count() = %d, want %d", got, len(all))
	}
}

func TestRegisteredSetMigratesCleanly(t *testing.T) {
	reg := migrate.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	st := memory.New()
	engine := migrate.NewEngine(reg, st, migrate.WithLogger(nil))

	if err := engine.MigrateTo(context.Background(), "latest"); err != nil {
		t.Fatalf("MigrateTo(latest) failed: %v", err)
	}
	if got := len(st.Scripts()); got != len(all) {
		t.Errorf("%d script(s) executed, want %d", got, len(all))
	}

	if err := engine.MigrateTo(context.Background(), "0"); err != nil {
		t.Fatalf("MigrateTo(0) failed: %v", err)
	}

	version, err := engine.GetVersion(context.Background())
	if err != nil {
		t.Fatalf("GetVersion failed: %v", err)
	}
	if version != 0 {
		t.Errorf("version after full unwind = %d, want 0", version)
	}
}
