package tokenstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/sso/internal/provider"
	"github.com/alicebob/miniredis/v2"
)

// setupRedisStore starts a miniredis instance and connects a store to it
func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	store, err := NewRedisStore(Config{
		URL: "redis://" + mr.Addr(),
		TTL: ttl,
	})
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create Redis store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return store, mr
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	t.Parallel()

	// unparseable URL is rejected
	if _, err := NewRedisStore(Config{URL: "not-a-url"}); err == nil {
		t.Error("expected error for invalid redis URL")
	}
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	// closed server fails the ping
	if _, err := NewRedisStore(Config{URL: "redis://" + addr}); err == nil {
		t.Error("expected error for unreachable redis")
	}
}

func TestPutToken_KeyLayout(t *testing.T) {
	t.Parallel()
	store, mr := setupRedisStore(t, 0)

	// token is stored under the prefixed username
	if err := store.PutToken(context.Background(), "alice", "tok"); err != nil {
		t.Fatalf("PutToken failed: %v", err)
	}
	got, err := mr.Get(DefaultPrefix + "alice")
	if err != nil {
		t.Fatalf("key missing: %v", err)
	}
	if got != "tok" {
		t.Errorf("stored = %s, want tok", got)
	}
}

func TestPutToken_ReplacesPrevious(t *testing.T) {
	t.Parallel()
	store, _ := setupRedisStore(t, 0)
	ctx := context.Background()

	// newer token wins
	_ = store.PutToken(ctx, "alice", "first")
	_ = store.PutToken(ctx, "alice", "second")

	token, err := store.GetToken(ctx, "alice")
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	if token != "second" {
		t.Errorf("token = %s, want second", token)
	}
}

func TestGetToken_Missing(t *testing.T) {
	t.Parallel()
	store, _ := setupRedisStore(t, 0)

	// missing key maps to ErrNotFound
	_, err := store.GetToken(context.Background(), "ghost")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteToken_CompareAndDelete(t *testing.T) {
	t.Parallel()
	store, mr := setupRedisStore(t, 0)
	ctx := context.Background()

	_ = store.PutToken(ctx, "alice", "current")

	// stale token leaves the key alone
	deleted, err := store.DeleteToken(ctx, "alice", "stale")
	if err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if deleted {
		t.Error("stale token should not delete")
	}
	if !mr.Exists(DefaultPrefix + "alice") {
		t.Error("key removed by stale delete")
	}

	// current token deletes
	deleted, err = store.DeleteToken(ctx, "alice", "current")
	if err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if !deleted {
		t.Error("expected current token to delete")
	}
	if mr.Exists(DefaultPrefix + "alice") {
		t.Error("key still present after delete")
	}
}

func TestTokenTTL(t *testing.T) {
	t.Parallel()
	store, mr := setupRedisStore(t, time.Hour)
	ctx := context.Background()

	_ = store.PutToken(ctx, "alice", "tok")

	// ttl is applied and expiry drops the token
	if ttl := mr.TTL(DefaultPrefix + "alice"); ttl != time.Hour {
		t.Errorf("ttl = %v, want 1h", ttl)
	}
	mr.FastForward(2 * time.Hour)
	if _, err := store.GetToken(ctx, "alice"); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected expired token, got %v", err)
	}
}

func TestDeleteTokens(t *testing.T) {
	t.Parallel()
	store, _ := setupRedisStore(t, 0)
	ctx := context.Background()

	_ = store.PutToken(ctx, "alice", "tok")

	// delete all removes the active token
	if err := store.DeleteTokens(ctx, "alice"); err != nil {
		t.Fatalf("DeleteTokens failed: %v", err)
	}
	if _, err := store.GetToken(ctx, "alice"); !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("token still present: %v", err)
	}

	// deleting again is not an error
	if err := store.DeleteTokens(ctx, "alice"); err != nil {
		t.Errorf("second DeleteTokens failed: %v", err)
	}
}
