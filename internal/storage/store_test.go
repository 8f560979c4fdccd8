package storage

import (
	"context"
	"path/filepath"
	"testing"
)

// storeFactories returns a constructor per driver so every Store honors the same contract.
func storeFactories(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"file": func() Store {
			s, err := NewFileStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewFileStore failed: %v", err)
			}
			return s
		},
		"sqlite": func() Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "slots.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore failed: %v", err)
			}
			return s
		},
		"sqlite-memory": func() Store {
			s, err := NewSQLiteStore(":memory:")
			if err != nil {
				t.Fatalf("NewSQLiteStore failed: %v", err)
			}
			return s
		},
		"memory": func() Store { return NewMemoryStore() },
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer func() { _ = store.Close() }()
			ctx := context.Background()

			if _, err := store.Get(ctx, "unsentTimeSpent"); !IsNotFound(err) {
				t.Fatalf("Get on empty slot: got %v, want ErrKeyNotFound", err)
			}

			if err := store.Set(ctx, "unsentTimeSpent", "1500"); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, err := store.Get(ctx, "unsentTimeSpent")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got != "1500" {
				t.Errorf("Got %q, want %q", got, "1500")
			}

			// Last write wins.
			if err := store.Set(ctx, "unsentTimeSpent", "4200"); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			got, _ = store.Get(ctx, "unsentTimeSpent")
			if got != "4200" {
				t.Errorf("Got %q after overwrite, want %q", got, "4200")
			}

			if err := store.Remove(ctx, "unsentTimeSpent"); err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			if _, err := store.Get(ctx, "unsentTimeSpent"); !IsNotFound(err) {
				t.Errorf("Get after Remove: got %v, want ErrKeyNotFound", err)
			}

			// Removing an empty slot is fine.
			if err := store.Remove(ctx, "unsentTimeSpent"); err != nil {
				t.Errorf("Remove of empty slot failed: %v", err)
			}
		})
	}
}

func TestStoreRejectsInvalidKeys(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory()
			defer func() { _ = store.Close() }()
			ctx := context.Background()

			for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
				if err := store.Set(ctx, key, "x"); err == nil {
					t.Errorf("Set(%q) succeeded, want error", key)
				}
			}
		})
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := first.Set(ctx, "authToken", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	got, err := second.Get(ctx, "authToken")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "abc" {
		t.Errorf("Got %q, want %q", got, "abc")
	}
}

func TestSQLiteStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := first.Set(ctx, "unsentTimeSpent", "9000"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	_ = first.Close()

	second, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer func() { _ = second.Close() }()

	got, err := second.Get(ctx, "unsentTimeSpent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "9000" {
		t.Errorf("Got %q, want %q", got, "9000")
	}
}

func TestMemoryStoreCalls(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Set(ctx, "k", "v")
	_, _ = store.Get(ctx, "k")
	_, _ = store.Get(ctx, "missing")
	_ = store.Remove(ctx, "k")

	calls := store.Calls()
	if calls.Set != 1 || calls.Get != 2 || calls.Remove != 1 {
		t.Errorf("Unexpected call counts: %+v", calls)
	}
	if len(store.Snapshot()) != 0 {
		t.Errorf("Expected empty snapshot, got %v", store.Snapshot())
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(DriverMemory, "")
	if err != nil {
		t.Fatalf("Open(memory) failed: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("Open(memory) returned %T", s)
	}

	s, err = Open(DriverFile, t.TempDir())
	if err != nil {
		t.Fatalf("Open(file) failed: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Errorf("Open(file) returned %T", s)
	}

	if _, err := Open("redis", ""); err == nil {
		t.Error("Open with unknown driver succeeded")
	}
}
