package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/toolsascode/lockstep/internal/migrate"
	"github.com/toolsascode/lockstep/internal/store/memory"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestLoadRegistersScriptPairs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1_create_users.up.sql", "CREATE TABLE users (id INT)")
	writeFile(t, dir, "1_create_users.down.sql", "DROP TABLE users")
	writeFile(t, dir, "2_add_index.up.sql", "CREATE INDEX idx ON users (id)")
	writeFile(t, dir, "2_add_index.down.sql", "DROP INDEX idx")
	writeFile(t, dir, "README.md", "not a migration")

	reg := migrate.NewRegistry()
	count, err := New(dir).Load(reg)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Load registered %d migration(s), want 2", count)
	}

	m, err := reg.FindByVersion(1)
	if err != nil {
		t.Fatalf("FindByVersion(1) failed: %v", err)
	}
	if m.Name != "create users" {
		t.Errorf("name = %q, want %q", m.Name, "create users")
	}

	if got := reg.Latest(); got != 2 {
		t.Errorf("Latest() = %d, want 2", got)
	}
}

func TestLoadedActionsExecuteScripts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1_create_users.up.sql", "CREATE TABLE users (id INT)")
	writeFile(t, dir, "1_create_users.down.sql", "DROP TABLE users")

	reg := migrate.NewRegistry()
	if _, err := New(dir).Load(reg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	st := memory.New()
	engine := migrate.NewEngine(reg, st, migrate.WithLogger(nil))
	if err := engine.MigrateTo(context.Background(), "latest"); err != nil {
		t.Fatalf("MigrateTo failed: %v", err)
	}

	scripts := st.Scripts()
	if len(scripts) != 1 || scripts[0] != "CREATE TABLE users (id INT)" {
		t.Errorf("executed scripts = %v, want the up script body", scripts)
	}
}

func TestLoadJSONScripts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "1_seed_control.up.json", `{"insert": "control"}`)
	writeFile(t, dir, "1_seed_control.down.json", `{"delete": "control"}`)

	reg := migrate.NewRegistry()
	count, err := New(dir).Load(reg)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Load registered %d migration(s), want 1", count)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "missing down script",
			files: map[string]string{
				"1_create_users.up.sql": "CREATE TABLE users (id INT)",
			},
		},
		{
			name: "missing up script",
			files: map[string]string{
				"1_create_users.down.sql": "DROP TABLE users",
			},
		},
		{
			name: "conflicting names for one version",
			files: map[string]string{
				"1_create_users.up.sql":  "CREATE TABLE users (id INT)",
				"1_drop_users.down.sql":  "DROP TABLE users",
				"1_create_users.down.sq": "ignored",
			},
		},
		{
			name: "version zero",
			files: map[string]string{
				"0_bad.up.sql":   "SELECT 1",
				"0_bad.down.sql": "SELECT 1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFile(t, dir, name, content)
			}

			reg := migrate.NewRegistry()
			if _, err := New(dir).Load(reg); err == nil {
				t.Error("Load expected error, got nil")
			}
		})
	}
}

func TestLoadEmptyDirectory(t *testing.T) {
	reg := migrate.NewRegistry()
	count, err := New(t.TempDir()).Load(reg)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Load registered %d migration(s) from empty dir", count)
	}
}
