package database

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/logger"
	"github.com/saiset-co/sai-proxy/metrics"
	"github.com/saiset-co/sai-proxy/types"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func testLogger() types.Logger {
	return logger.NewFromLogger(zap.NewNop())
}

func openDatabase(t *testing.T, config *types.DatabaseConfig) types.Database {
	t.Helper()
	db, err := NewDatabase(config, testLogger(), metrics.NewNoopMetrics())
	if err != nil {
		t.Fatalf("open %s database: %v", config.Type, err)
	}
	if err := db.Start(); err != nil {
		t.Fatalf("start %s database: %v", config.Type, err)
	}
	return db
}

func exerciseEngine(t *testing.T, db types.Database) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := db.Get(ctx, "players", []byte("missing")); err != nil || found {
		t.Fatalf("expected absent key, found=%v err=%v", found, err)
	}

	if err := db.Put(ctx, "players", []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := db.Put(ctx, "players", []byte("k1"), []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := db.Put(ctx, "servers", []byte("k1"), []byte("other")); err != nil {
		t.Fatalf("put other bucket: %v", err)
	}

	value, found, err := db.Get(ctx, "players", []byte("k1"))
	if err != nil || !found {
		t.Fatalf("expected k1 present, found=%v err=%v", found, err)
	}
	if !bytes.Equal(value, []byte("v2")) {
		t.Fatalf("expected v2, got %q", value)
	}

	value, _, _ = db.Get(ctx, "servers", []byte("k1"))
	if !bytes.Equal(value, []byte("other")) {
		t.Fatalf("buckets must be independent, got %q", value)
	}
}

func TestMemoryDatabase(t *testing.T) {
	db := openDatabase(t, &types.DatabaseConfig{Type: "memory"})
	defer db.Stop()

	exerciseEngine(t, db)
}

func TestCloverDatabasePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database")
	config := &types.DatabaseConfig{Type: "clover", Path: path}

	db := openDatabase(t, config)
	exerciseEngine(t, db)
	if err := db.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	reopened := openDatabase(t, config)
	defer reopened.Stop()

	value, found, err := reopened.Get(context.Background(), "players", []byte("k1"))
	if err != nil || !found {
		t.Fatalf("expected k1 after reopen, found=%v err=%v", found, err)
	}
	if !bytes.Equal(value, []byte("v2")) {
		t.Fatalf("expected v2 after reopen, got %q", value)
	}
}

func TestRedisDatabase(t *testing.T) {
	addr := os.Getenv("SAI_PROXY_REDIS_ADDR")
	if addr == "" {
		t.Skip("SAI_PROXY_REDIS_ADDR not set")
	}

	db := openDatabase(t, &types.DatabaseConfig{
		Type:  "redis",
		Redis: &types.RedisConfig{Addr: addr, KeyPrefix: "sai-proxy-test-" + uuid.NewString()},
	})
	defer db.Stop()

	exerciseEngine(t, db)
}

func TestDatabaseRejectsOperationsWhenStopped(t *testing.T) {
	db, err := NewDatabase(&types.DatabaseConfig{Type: "memory"}, testLogger(), metrics.NewNoopMetrics())
	if err != nil {
		t.Fatalf("new database: %v", err)
	}

	if err := db.Put(context.Background(), "b", []byte("k"), []byte("v")); !errors.Is(err, types.ErrDatabaseNotRunning) {
		t.Fatalf("expected ErrDatabaseNotRunning before start, got %v", err)
	}

	if err := db.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := db.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, _, err := db.Get(context.Background(), "b", []byte("k")); !errors.Is(err, types.ErrDatabaseNotRunning) {
		t.Fatalf("expected ErrDatabaseNotRunning after stop, got %v", err)
	}
}

func TestDatabaseValidatesBucketAndKey(t *testing.T) {
	db := openDatabase(t, &types.DatabaseConfig{Type: "memory"})
	defer db.Stop()

	if err := db.Put(context.Background(), "", []byte("k"), nil); !errors.Is(err, types.ErrDatabaseBucketEmpty) {
		t.Fatalf("expected ErrDatabaseBucketEmpty, got %v", err)
	}
	if err := db.Put(context.Background(), "b", nil, nil); !errors.Is(err, types.ErrDatabaseKeyInvalid) {
		t.Fatalf("expected ErrDatabaseKeyInvalid, got %v", err)
	}
}

func TestUnknownDatabaseType(t *testing.T) {
	_, err := NewDatabase(&types.DatabaseConfig{Type: "etcd"}, testLogger(), metrics.NewNoopMetrics())
	if !errors.Is(err, types.ErrDatabaseTypeUnknown) {
		t.Fatalf("expected ErrDatabaseTypeUnknown, got %v", err)
	}
}

func TestRegisteredDatabaseCreator(t *testing.T) {
	RegisterDatabase("custom-memory", func(config *types.DatabaseConfig, logger types.Logger) (types.Database, error) {
		return NewMemoryDB(logger), nil
	})

	db := openDatabase(t, &types.DatabaseConfig{Type: "custom-memory"})
	defer db.Stop()

	exerciseEngine(t, db)
}
