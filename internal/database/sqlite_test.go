package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"git.sr.ht/~jakintosh/sso/internal/database"
)

func setupStore(t *testing.T) *database.SQLiteStore {
	t.Helper()
	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	t.Parallel()
	store := setupStore(t)

	// in-memory store is created successfully
	if store == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestNewSQLiteStore_CreatesSchema(t *testing.T) {
	t.Parallel()
	store := setupStore(t)
	ctx := context.Background()

	// schema is created - insert and retrieve works
	err := store.InsertIdentity(ctx, "test-user", []byte("secret-hash"))
	if err != nil {
		t.Fatalf("schema not created - InsertIdentity failed: %v", err)
	}

	secret, err := store.GetSecret(ctx, "test-user")
	if err != nil {
		t.Fatalf("schema not created - GetSecret failed: %v", err)
	}
	if string(secret) != "secret-hash" {
		t.Errorf("unexpected secret: %s", string(secret))
	}
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sso.db")
	ctx := context.Background()

	// data written to a file survives reopening
	store, err := database.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.InsertIdentity(ctx, "alice", []byte("hash")); err != nil {
		t.Fatalf("InsertIdentity failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	store, err = database.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.GetSecret(ctx, "alice"); err != nil {
		t.Errorf("GetSecret after reopen failed: %v", err)
	}
}

func TestSQLiteStore_Close(t *testing.T) {
	t.Parallel()
	store, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	// closing store succeeds without error
	if err := store.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}

func TestSQLiteStore_StoreViews(t *testing.T) {
	t.Parallel()
	store := setupStore(t)

	// each store view is the same store instance
	if store.IdentityStore() != store {
		t.Error("IdentityStore() should return the same store")
	}
	if store.TokenStore() != store {
		t.Error("TokenStore() should return the same store")
	}
	if store.ContextStore() != store {
		t.Error("ContextStore() should return the same store")
	}
}
