package memory

import (
	"context"
	"testing"
	"time"
)

func TestLoadCreatesRecordLazily(t *testing.T) {
	s := New()

	rec, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.Version != 0 || rec.Locked {
		t.Errorf("fresh record = %+v, want version 0 unlocked", rec)
	}
}

func TestAcquireLock(t *testing.T) {
	s := New()
	now := time.Now()

	acquired, err := s.AcquireLock(context.Background(), now, 0)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !acquired {
		t.Fatal("first AcquireLock = false, want true")
	}

	acquired, err = s.AcquireLock(context.Background(), now, 0)
	if err != nil {
		t.Fatalf("second AcquireLock failed: %v", err)
	}
	if acquired {
		t.Error("second AcquireLock = true, want false")
	}

	if err := s.Unlock(context.Background()); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	acquired, err = s.AcquireLock(context.Background(), now, 0)
	if err != nil {
		t.Fatalf("AcquireLock after Unlock failed: %v", err)
	}
	if !acquired {
		t.Error("AcquireLock after Unlock = false, want true")
	}
}

func TestAcquireLockLeaseTakeover(t *testing.T) {
	s := New()
	stamped := time.Now().Add(-time.Hour)

	if _, err := s.AcquireLock(context.Background(), stamped, 0); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	// Within the lease the lock stays held.
	acquired, err := s.AcquireLock(context.Background(), stamped.Add(time.Minute), 10*time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if acquired {
		t.Error("lock taken over inside the lease window")
	}

	// Past the lease the stale lock is claimable.
	acquired, err = s.AcquireLock(context.Background(), stamped.Add(time.Hour), 10*time.Minute)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !acquired {
		t.Error("stale lock not taken over past the lease window")
	}
}

func TestSetVersionPersists(t *testing.T) {
	s := New()

	if err := s.SetVersion(context.Background(), 42); err != nil {
		t.Fatalf("SetVersion failed: %v", err)
	}

	rec, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.Version != 42 {
		t.Errorf("version = %d, want 42", rec.Version)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := New()

	if err := s.SetVersion(context.Background(), 7); err != nil {
		t.Fatalf("SetVersion failed: %v", err)
	}
	if err := s.Exec(context.Background(), "CREATE TABLE t (id INT)"); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	rec, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rec.Version != 0 {
		t.Errorf("version after Reset = %d, want 0", rec.Version)
	}
	if got := len(s.Scripts()); got != 0 {
		t.Errorf("%d script(s) survived Reset", got)
	}
}

func TestExecRecordsScriptsInOrder(t *testing.T) {
	s := New()

	scripts := []string{"one", "two", "three"}
	for _, script := range scripts {
		if err := s.Exec(context.Background(), script); err != nil {
			t.Fatalf("Exec(%q) failed: %v", script, err)
		}
	}

	got := s.Scripts()
	if len(got) != len(scripts) {
		t.Fatalf("Scripts() returned %d entries, want %d", len(got), len(scripts))
	}
	for i := range scripts {
		if got[i] != scripts[i] {
			t.Errorf("Scripts()[%d] = %q, want %q", i, got[i], scripts[i])
		}
	}
}
