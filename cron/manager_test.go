package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/config"
	"github.com/saiset-co/sai-proxy/logger"
	"github.com/saiset-co/sai-proxy/metrics"
	"github.com/saiset-co/sai-proxy/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cm := config.NewStaticManager(config.NewLoader().Defaults())
	m, err := NewManager(context.Background(), cm, logger.NewFromLogger(zap.NewNop()), metrics.NewNoopMetrics())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestJobRunsAndStatsUpdate(t *testing.T) {
	m := newTestManager(t)

	var runs int32
	err := m.Add("reload", "@every 1s", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("reload failed")
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&runs) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("job did not run")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	jobs := m.Jobs()
	if len(jobs) != 1 || jobs[0].Name != "reload" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
	if jobs[0].RunCount == 0 || jobs[0].Error != "reload failed" {
		t.Fatalf("expected stats to record failing run, got %+v", jobs[0])
	}
}

func TestAddValidation(t *testing.T) {
	m := newTestManager(t)
	noop := func(ctx context.Context) error { return nil }

	if err := m.Add("", "@every 1s", noop); !errors.Is(err, types.ErrCronJobNameIsEmpty) {
		t.Fatalf("expected ErrCronJobNameIsEmpty, got %v", err)
	}
	if err := m.Add("job", "not a spec", noop); !errors.Is(err, types.ErrCronExpressionInvalid) {
		t.Fatalf("expected ErrCronExpressionInvalid, got %v", err)
	}
	if err := m.Add("job", "@every 1h", nil); !errors.Is(err, types.ErrCronJobIsNil) {
		t.Fatalf("expected ErrCronJobIsNil, got %v", err)
	}
	if err := m.Add("job", "@every 1h", noop); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := m.Add("job", "@every 1h", noop); !errors.Is(err, types.ErrCronJobExists) {
		t.Fatalf("expected ErrCronJobExists, got %v", err)
	}
	if err := m.Remove("job"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := m.Remove("job"); !errors.Is(err, types.ErrCronJobNotFound) {
		t.Fatalf("expected ErrCronJobNotFound, got %v", err)
	}
}

func TestStopCancelsRunningJob(t *testing.T) {
	m := newTestManager(t)

	started := make(chan struct{}, 1)
	var cancelled int32
	err := m.Add("slow", "* * * * * *", func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not start")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if atomic.LoadInt32(&cancelled) != 1 {
		t.Fatalf("expected running job to observe cancellation")
	}
	if m.IsRunning() {
		t.Fatalf("expected manager to be stopped")
	}
}
