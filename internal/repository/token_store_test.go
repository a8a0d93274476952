package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/classroom-client/internal/persistence"
)

type tokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Remove(ctx context.Context) error
}

func newStores(t *testing.T) map[string]tokenStore {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	db, err := persistence.NewSQLite(context.Background(), ":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)

	return map[string]tokenStore{
		"memory": NewMemoryTokenStore(),
		"file":   NewFileTokenStore(filepath.Join(t.TempDir(), "nested", "token")),
		"redis":  NewRedisTokenStore(rdb, "", "session_token"),
		"sqlite": NewSQLiteTokenStore(db.DB, "session_token"),
	}
}

func TestTokenStoresRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.Get(ctx)
			if err != nil {
				t.Fatalf("get empty: %v", err)
			}
			if got != "" {
				t.Fatalf("empty store returned %q", got)
			}

			if err := store.Set(ctx, "T1"); err != nil {
				t.Fatalf("set: %v", err)
			}
			if err := store.Set(ctx, "T2"); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, err = store.Get(ctx)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got != "T2" {
				t.Fatalf("got %q, want T2", got)
			}

			if err := store.Remove(ctx); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if err := store.Remove(ctx); err != nil {
				t.Fatalf("second remove should be idempotent: %v", err)
			}
			got, err = store.Get(ctx)
			if err != nil {
				t.Fatalf("get after remove: %v", err)
			}
			if got != "" {
				t.Fatalf("token survived remove: %q", got)
			}
		})
	}
}

func TestFileTokenStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store := NewFileTokenStore(path)

	if err := store.Set(context.Background(), "secret"); err != nil {
		t.Fatalf("set: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestRedisTokenStoreKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisTokenStore(rdb, "device-1:", "session_token")
	if err := store.Set(context.Background(), "T1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, err := mr.Get("device-1:session_token")
	if err != nil {
		t.Fatalf("miniredis get: %v", err)
	}
	if val != "T1" {
		t.Fatalf("stored %q", val)
	}
}
