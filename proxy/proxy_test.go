package proxy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/sai-proxy/config"
	"github.com/saiset-co/sai-proxy/database"
	"github.com/saiset-co/sai-proxy/logger"
	"github.com/saiset-co/sai-proxy/metrics"
	"github.com/saiset-co/sai-proxy/types"
)

type fixture struct {
	db      types.Database
	caches  *Caches
	players *Players
	servers *Servers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

func newFixtureWith(t *testing.T, adjust func(*types.ServiceConfig)) *fixture {
	t.Helper()

	cfg := config.NewLoader().Defaults()
	cfg.Database.Type = "memory"
	if adjust != nil {
		adjust(cfg)
	}
	cm := config.NewStaticManager(cfg)
	log := logger.NewFromLogger(zap.NewNop())
	m := metrics.NewNoopMetrics()

	db, err := database.NewDatabase(cfg.Database, log, m)
	if err != nil {
		t.Fatalf("new database: %v", err)
	}
	if err := db.Start(); err != nil {
		t.Fatalf("start database: %v", err)
	}
	t.Cleanup(func() { _ = db.Stop() })

	caches, err := NewCaches(db, cfg.Database, cfg.Caches, log, m)
	if err != nil {
		t.Fatalf("new caches: %v", err)
	}
	t.Cleanup(func() { _ = caches.Close(context.Background()) })

	servers := NewServers(caches, cm)
	return &fixture{
		db:      db,
		caches:  caches,
		players: NewPlayers(caches, servers, log),
		servers: servers,
	}
}

func TestJoinAndResolveIgnoreCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	data, err := f.players.Join(ctx, id, "Notch", "Lobby")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if data.LastName() != "Notch" || data.LastServer() != "lobby" || data.Joins() != 1 {
		t.Fatalf("unexpected record %+v", data.Snapshot())
	}

	got, err := f.players.Resolve(ctx, "NOTCH")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}

	server, err := f.servers.Get(ctx, "lobby")
	if err != nil {
		t.Fatalf("server get: %v", err)
	}
	if server.Connections() != 1 {
		t.Fatalf("expected one connection, got %d", server.Connections())
	}
}

func TestResolveUnknownNameIsNotPersisted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.players.Resolve(ctx, "nobody"); !errors.Is(err, types.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}

	if err := f.caches.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	key, err := database.NameKey{MaxLength: maxPlayerNameLength}.EncodeKey("nobody")
	if err != nil {
		t.Fatalf("encode key: %v", err)
	}
	if _, found, err := f.db.Get(ctx, PlayerNamesBucket, key); err != nil || found {
		t.Fatalf("sentinel must not reach the store, found=%v err=%v", found, err)
	}
}

func TestOperatorSurvivesFlush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := f.players.Join(ctx, id, "Alex", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.players.SetOperator(ctx, "alex", true); err != nil {
		t.Fatalf("op: %v", err)
	}

	if err := f.caches.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if f.caches.Players.Len() != 0 || f.caches.Names.Len() != 0 {
		t.Fatalf("expected caches to be empty after flush")
	}

	op, err := f.players.IsOperator(ctx, id)
	if err != nil {
		t.Fatalf("is operator: %v", err)
	}
	if !op {
		t.Fatalf("expected operator flag to be reloaded from the store")
	}

	resolved, err := f.players.Resolve(ctx, "ALEX")
	if err != nil || resolved != id {
		t.Fatalf("expected name lookup to be reloaded, got %s err=%v", resolved, err)
	}

	if err := f.players.SetOperator(ctx, "ghost", true); !errors.Is(err, types.ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound for unknown player, got %v", err)
	}
}

func TestTransferMarksHub(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := f.players.Join(ctx, id, "Steve", "survival"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := f.players.Transfer(ctx, id, "HUB"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	data, _ := f.players.Get(ctx, id)
	if data.LastServer() != "hub" {
		t.Fatalf("expected last server hub, got %q", data.LastServer())
	}

	hub, err := f.servers.Get(ctx, "hub")
	if err != nil {
		t.Fatalf("server get: %v", err)
	}
	if !hub.IsHub() || hub.Connections() != 1 {
		t.Fatalf("unexpected hub record %+v", hub.Snapshot())
	}

	if err := f.players.Transfer(ctx, id, " "); !errors.Is(err, types.ErrServerNameEmpty) {
		t.Fatalf("expected ErrServerNameEmpty, got %v", err)
	}
}

func TestJoinValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.players.Join(context.Background(), uuid.New(), "  ", "lobby"); !errors.Is(err, types.ErrPlayerNameEmpty) {
		t.Fatalf("expected ErrPlayerNameEmpty, got %v", err)
	}
	if _, err := f.players.Join(context.Background(), uuid.Nil, "steve", "lobby"); !errors.Is(err, types.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestOverlongNamesAreRejectedBeforeCaching(t *testing.T) {
	f := newFixtureWith(t, func(cfg *types.ServiceConfig) {
		cfg.Caches.Capacity = 2
	})
	ctx := context.Background()

	if _, err := f.players.Join(ctx, uuid.New(), "ThisNameIsSeventeen", "lobby"); !errors.Is(err, types.ErrDatabaseKeyInvalid) {
		t.Fatalf("expected ErrDatabaseKeyInvalid, got %v", err)
	}
	if f.caches.Names.Contains("thisnameisseventeen") {
		t.Fatalf("rejected name must not be cached")
	}

	longServer := "a-server-name-well-over-thirty-two-chars"
	if _, err := f.players.Join(ctx, uuid.New(), "steve", longServer); !errors.Is(err, types.ErrDatabaseKeyInvalid) {
		t.Fatalf("expected ErrDatabaseKeyInvalid for server, got %v", err)
	}
	if f.caches.Servers.Contains(longServer) {
		t.Fatalf("rejected server must not be cached")
	}

	ids := make(map[string]uuid.UUID)
	for _, name := range []string{"p1", "p2", "p3"} {
		ids[name] = uuid.New()
		if _, err := f.players.Join(ctx, ids[name], name, "lobby"); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}

	id, err := f.players.Resolve(ctx, "p3")
	if err != nil || id != ids["p3"] {
		t.Fatalf("resolve p3: %v %v", id, err)
	}
	if n := f.caches.Names.Len(); n > 2 {
		t.Fatalf("names cache exceeded capacity: %d entries", n)
	}

	if _, err := f.players.Resolve(ctx, "ThisNameIsSeventeen"); !errors.Is(err, types.ErrDatabaseKeyInvalid) {
		t.Fatalf("expected resolve of overlong name to fail, got %v", err)
	}
	if err := f.caches.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAdminReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("proxy:\n  join_message: first\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cm, err := config.NewManager(context.Background(), path)
	if err != nil {
		t.Fatalf("config manager: %v", err)
	}

	core, logs := observer.New(zapcore.InfoLevel)
	admin := NewAdmin(cm, logger.NewFromLogger(zap.New(core)))

	if err := os.WriteFile(path, []byte("proxy:\n  join_message: second\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := admin.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if admin.JoinMessage() != "second" {
		t.Fatalf("expected reloaded join message, got %q", admin.JoinMessage())
	}
	if logs.FilterMessage("second").Len() != 1 {
		t.Fatalf("expected join message to be logged")
	}

	if err := os.WriteFile(path, []byte("caches:\n  capacity: -5\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := admin.Reload(); !errors.Is(err, types.ErrConfigLoadFailed) {
		t.Fatalf("expected ErrConfigLoadFailed, got %v", err)
	}
	if admin.JoinMessage() != "second" {
		t.Fatalf("expected previous config to stay active")
	}
}
