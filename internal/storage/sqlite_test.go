package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// runStorageContract exercises the behavior both implementations must share.
func runStorageContract(t *testing.T, store Storage) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.GetItem(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetItem(missing) error = %v, want ErrNotFound", err)
	}

	if err := store.SetItem(ctx, "vectormind.tags", `{"doc1":"Legal"}`); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetItem(ctx, "vectormind.tags")
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"doc1":"Legal"}` {
		t.Errorf("GetItem = %q", got)
	}

	if err := store.SetItem(ctx, "vectormind.tags", `{}`); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetItem(ctx, "vectormind.tags")
	if got != `{}` {
		t.Errorf("overwrite: got %q", got)
	}

	_ = store.SetItem(ctx, "vectormind.workspaces", `[]`)
	_ = store.SetItem(ctx, "uploads.file:abc", `doc-9`)
	keys, err := store.Keys(ctx, "vectormind.")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "vectormind.tags" || keys[1] != "vectormind.workspaces" {
		t.Errorf("Keys(vectormind.) = %v", keys)
	}

	if err := store.RemoveItem(ctx, "vectormind.tags"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetItem(ctx, "vectormind.tags"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after remove: err = %v", err)
	}
	if err := store.RemoveItem(ctx, "never-set"); err != nil {
		t.Errorf("removing an absent key should succeed: %v", err)
	}
}

func TestSQLiteStorage_Contract(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runStorageContract(t, store)
}

func TestMemoryStorage_Contract(t *testing.T) {
	runStorageContract(t, NewMemoryStorage())
}

func TestSQLiteStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetItem(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	got, err := reopened.GetItem(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("after reopen: got %q, %v", got, err)
	}
}
