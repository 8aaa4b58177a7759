package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/sai-proxy/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

type Manager struct {
	config       types.ConfigManager
	logger       types.Logger
	checkers     map[string]types.HealthChecker
	startTime    time.Time
	mu           sync.RWMutex
	state        atomic.Value
	checkTimeout time.Duration
}

func NewManager(config types.ConfigManager, logger types.Logger) *Manager {
	manager := &Manager{
		config:       config,
		logger:       logger,
		checkers:     make(map[string]types.HealthChecker),
		startTime:    time.Now(),
		checkTimeout: 5 * time.Second,
	}

	manager.state.Store(StateStopped)

	return manager
}

func (hm *Manager) RegisterChecker(name string, checker types.HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.checkers[name] = checker
}

// Check runs every registered checker concurrently. A checker that panics
// or outlives checkTimeout counts as unhealthy.
func (hm *Manager) Check(ctx context.Context) types.HealthReport {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	checkers := make([]types.HealthChecker, len(names))
	sort.Strings(names)
	for i, name := range names {
		checkers[i] = hm.checkers[name]
	}
	hm.mu.RUnlock()

	results := make([]types.HealthCheck, len(names))

	var g errgroup.Group
	for i := range names {
		g.Go(func() error {
			results[i] = hm.executeCheck(ctx, names[i], checkers[i])
			return nil
		})
	}
	_ = g.Wait()

	report := hm.buildReport(results)
	if report.Status != types.StatusHealthy {
		hm.logger.Warn("Health check degraded",
			zap.String("status", string(report.Status)),
			zap.Int("unhealthy", report.Count(types.StatusUnhealthy)),
			zap.Int("degraded", report.Count(types.StatusDegraded)))
	}

	return report
}

func (hm *Manager) Start() error {
	if !hm.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	hm.startTime = time.Now()
	hm.setState(StateRunning)

	hm.logger.Info("Health manager started")
	return nil
}

func (hm *Manager) Stop() error {
	if !hm.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	hm.setState(StateStopped)
	hm.logger.Info("Health manager stopped gracefully")
	return nil
}

func (hm *Manager) IsRunning() bool {
	return hm.getState() == StateRunning
}

func (hm *Manager) getState() State {
	return hm.state.Load().(State)
}

func (hm *Manager) setState(newState State) {
	hm.state.Store(newState)
}

func (hm *Manager) transitionState(from, to State) bool {
	return hm.state.CompareAndSwap(from, to)
}

func (hm *Manager) executeCheck(ctx context.Context, name string, checker types.HealthChecker) types.HealthCheck {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, hm.checkTimeout)
	defer cancel()

	done := make(chan types.HealthCheck, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- types.HealthCheck{
					Status:  types.StatusUnhealthy,
					Message: fmt.Sprintf("check panicked: %v", r),
				}
			}
		}()
		done <- checker(checkCtx)
	}()

	var result types.HealthCheck
	select {
	case result = <-done:
	case <-checkCtx.Done():
		result = types.HealthCheck{
			Status:  types.StatusUnhealthy,
			Message: "check timed out",
		}
	}

	result.Name = name
	result.Latency = time.Since(start)

	return result
}

func (hm *Manager) buildReport(results []types.HealthCheck) types.HealthReport {
	report := types.HealthReport{
		Status:    types.StatusHealthy,
		CheckedAt: time.Now(),
		Uptime:    time.Since(hm.startTime).Round(time.Second).String(),
		Checks:    results,
	}

	for _, result := range results {
		if result.Status.Worse(report.Status) {
			report.Status = result.Status
		}
	}

	if config := hm.config.GetConfig(); config != nil {
		report.Service = config.Name
		report.Version = config.Version
	}

	return report
}
