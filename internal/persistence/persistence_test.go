package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/classroom-client/internal/config"
)

func TestRedisPing(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	r := NewRedis(ctx, config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	if err := r.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	r.Close()
	if err := r.Ping(ctx); err == nil {
		t.Fatal("ping after close should fail")
	}

	var missing *Redis
	if err := missing.Ping(ctx); err == nil {
		t.Fatal("nil client should not ping")
	}
}

func TestSQLiteOpenMigratesAndPings(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "classroom.db")

	db, err := NewSQLite(ctx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	db.Close()
	if err := db.Ping(ctx); err == nil {
		t.Fatal("ping after close should fail")
	}
}
