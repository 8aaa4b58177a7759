package health

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/config"
	"github.com/saiset-co/sai-proxy/database"
	"github.com/saiset-co/sai-proxy/logger"
	"github.com/saiset-co/sai-proxy/metrics"
	"github.com/saiset-co/sai-proxy/types"
)

type fakeCache struct {
	entries, capacity int
}

func (f fakeCache) Name() string {
	return "fake"
}

func (f fakeCache) Len() int {
	return f.entries
}

func (f fakeCache) Capacity() int {
	return f.capacity
}

func (f fakeCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (f fakeCache) Close(ctx context.Context) error {
	return nil
}

func newTestManager() *Manager {
	cm := config.NewStaticManager(config.NewLoader().Defaults())
	return NewManager(cm, logger.NewFromLogger(zap.NewNop()))
}

func TestReportAggregatesCheckers(t *testing.T) {
	hm := newTestManager()

	db, err := database.NewDatabase(&types.DatabaseConfig{Type: "memory"}, logger.NewFromLogger(zap.NewNop()), metrics.NewNoopMetrics())
	if err != nil {
		t.Fatalf("new database: %v", err)
	}
	if err := db.Start(); err != nil {
		t.Fatalf("start database: %v", err)
	}

	hm.RegisterChecker("database", DatabaseChecker(db))
	hm.RegisterChecker("cache", CacheChecker(fakeCache{entries: 3, capacity: 256}))

	report := hm.Check(context.Background())
	if report.Status != types.StatusHealthy {
		t.Fatalf("expected healthy report, got %+v", report)
	}
	if len(report.Checks) != 2 || report.Count(types.StatusHealthy) != 2 {
		t.Fatalf("unexpected checks %+v", report.Checks)
	}
	if report.Checks[0].Name != "cache" || report.Checks[1].Name != "database" {
		t.Fatalf("expected checks sorted by name, got %+v", report.Checks)
	}
	if report.Service != "sai-proxy" {
		t.Fatalf("expected service name, got %q", report.Service)
	}

	_ = db.Stop()
	report = hm.Check(context.Background())
	check, _ := report.Check("database")
	if report.Status != types.StatusUnhealthy || check.Status != types.StatusUnhealthy {
		t.Fatalf("expected stopped database to be unhealthy, got %+v", check)
	}
}

func TestOverCapacityCacheIsDegraded(t *testing.T) {
	hm := newTestManager()
	hm.RegisterChecker("cache", CacheChecker(fakeCache{entries: 300, capacity: 256}))

	report := hm.Check(context.Background())
	if report.Status != types.StatusDegraded {
		t.Fatalf("expected degraded status, got %s", report.Status)
	}
}

func TestPanickingAndSlowCheckers(t *testing.T) {
	hm := newTestManager()
	hm.checkTimeout = 20 * time.Millisecond

	hm.RegisterChecker("panics", func(ctx context.Context) types.HealthCheck {
		panic("boom")
	})
	hm.RegisterChecker("slow", func(ctx context.Context) types.HealthCheck {
		time.Sleep(200 * time.Millisecond)
		return types.HealthCheck{Status: types.StatusHealthy}
	})

	report := hm.Check(context.Background())
	if report.Count(types.StatusUnhealthy) != 2 {
		t.Fatalf("expected both checks unhealthy, got %+v", report.Checks)
	}
	if slow, _ := report.Check("slow"); slow.Message != "check timed out" {
		t.Fatalf("unexpected slow check message %q", slow.Message)
	}
}
