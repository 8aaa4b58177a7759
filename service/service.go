package service

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/config"
	"github.com/saiset-co/sai-proxy/cron"
	"github.com/saiset-co/sai-proxy/database"
	"github.com/saiset-co/sai-proxy/health"
	"github.com/saiset-co/sai-proxy/logger"
	"github.com/saiset-co/sai-proxy/metrics"
	"github.com/saiset-co/sai-proxy/proxy"
	"github.com/saiset-co/sai-proxy/server"
	"github.com/saiset-co/sai-proxy/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const reloadJobName = "config-reload"

type component struct {
	name    string
	manager types.LifecycleManager
}

// Service owns every component and their start/stop order. The store is
// opened before any cache is built and closed only after every cache has
// been flushed.
type Service struct {
	ctx      context.Context
	cancel   context.CancelFunc
	Config   *config.Manager
	Logger   types.LoggerManager
	Metrics  types.MetricsManager
	Database types.Database
	Caches   *proxy.Caches
	Players  *proxy.Players
	Servers  *proxy.Servers
	Admin    *proxy.Admin
	Health   *health.Manager
	Cron     *cron.Manager
	HTTP     *server.FastHTTPServer
	state    atomic.Value

	// set while a Stop is waiting to be retried after a failed flush
	flushPending atomic.Bool
}

// New loads configPath, writing a default file when it does not exist,
// and builds the service from it.
func New(ctx context.Context, configPath string) (*Service, error) {
	cm, log, err := load(ctx, configPath)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(ctx, cm, log)
}

// NewOffline builds a service for one-shot administrative commands: no
// scheduled reload and no admin server.
func NewOffline(ctx context.Context, configPath string) (*Service, error) {
	cm, log, err := load(ctx, configPath)
	if err != nil {
		return nil, err
	}

	cfg := *cm.GetConfig()
	serverConfig := *cfg.Server
	serverConfig.Enabled = false
	cfg.Server = &serverConfig
	reloadConfig := *cfg.Reload
	reloadConfig.Enabled = false
	cfg.Reload = &reloadConfig

	return NewWithConfig(ctx, config.NewStaticManager(&cfg), log)
}

func load(ctx context.Context, configPath string) (*config.Manager, types.LoggerManager, error) {
	if configPath == "" {
		return nil, nil, types.ErrConfigInvalidPath
	}

	cm, err := config.NewManager(ctx, configPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.NewManager(cm)
	if err != nil {
		return nil, nil, err
	}

	if cm.Fresh() {
		log.Info("Wrote fresh config", zap.String("path", configPath))
	}

	return cm, log, nil
}

// NewWithConfig builds the service from an already loaded config.
func NewWithConfig(ctx context.Context, cm *config.Manager, log types.LoggerManager) (_ *Service, err error) {
	cfg := cm.GetConfig()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer func() {
		if err != nil {
			cancel()
		}
	}()

	s := &Service{
		ctx:    serviceCtx,
		cancel: cancel,
		Config: cm,
		Logger: log,
	}
	s.state.Store(StateStopped)

	s.Metrics = metrics.NewManager(cm, log)

	db, err := database.NewDatabase(cfg.Database, log, s.Metrics)
	if err != nil {
		return nil, err
	}
	s.Database = db

	caches, err := proxy.NewCaches(db, cfg.Database, cfg.Caches, log, s.Metrics)
	if err != nil {
		return nil, err
	}
	s.Caches = caches
	defer func() {
		if err != nil {
			_ = caches.Close(context.Background())
		}
	}()

	s.Servers = proxy.NewServers(caches, cm)
	s.Players = proxy.NewPlayers(caches, s.Servers, log)
	s.Admin = proxy.NewAdmin(cm, log)

	s.Health = health.NewManager(cm, log)
	s.Health.RegisterChecker("database", health.DatabaseChecker(db))
	for _, c := range caches.All() {
		s.Health.RegisterChecker("cache_"+c.Name(), health.CacheChecker(c))
	}

	s.Cron, err = cron.NewManager(serviceCtx, cm, log, s.Metrics)
	if err != nil {
		return nil, err
	}
	if cfg.Reload.Enabled {
		err = s.Cron.Add(reloadJobName, cfg.Reload.Spec, func(ctx context.Context) error {
			return s.Admin.Reload()
		})
		if err != nil {
			return nil, err
		}
	}

	if cfg.Server.Enabled {
		router := server.NewRouter()
		(&server.AdminHandlers{
			Players: s.Players,
			Admin:   s.Admin,
			Caches:  caches,
			Health:  s.Health,
			Metrics: s.Metrics,
			Cron:    s.Cron,
			Config:  cm,
			Version: cfg.Version,
		}).Register(router)
		s.HTTP = server.NewHTTPServer(cfg.Server, log, s.Metrics, router)
	}

	return s, nil
}

// Start opens the store and starts background components. Components
// already started are stopped again if a later one fails.
func (s *Service) Start() (err error) {
	if !s.transitionState(StateStopped, StateStarting) {
		return types.ErrServiceIsRunning
	}

	var started []types.LifecycleManager
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			s.Logger.Error("Service start panic", zap.Any("panic", r), zap.String("stack", string(buf[:n])))
			err = fmt.Errorf("service panic: %v", r)
		}
		if err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				_ = started[i].Stop()
			}
			s.setState(StateStopped)
		}
	}()

	components := []component{
		{"logger", s.Logger},
		{"database", s.Database},
		{"metrics", s.Metrics},
		{"health", s.Health},
		{"cron", s.Cron},
	}
	if s.HTTP != nil {
		components = append(components, component{"http", s.HTTP})
	}

	for _, component := range components {
		if err := component.manager.Start(); err != nil {
			return types.WrapError(err, "failed to start "+component.name)
		}
		started = append(started, component.manager)
	}

	s.setState(StateRunning)
	s.Logger.Info("Service started",
		zap.String("name", s.Config.GetConfig().Name),
		zap.String("version", s.Config.GetConfig().Version))

	return nil
}

// Stop shuts down in order: HTTP, scheduler, caches (flushing every entry),
// then the store. A failed flush leaves the store open so no entry is lost
// and keeps the service in StateStopping; calling Stop again retries the
// flush and finishes the shutdown. The returned error carries every failure.
func (s *Service) Stop(ctx context.Context) error {
	var errs error

	switch {
	case s.transitionState(StateRunning, StateStopping):
		s.Logger.Info("Stopping service...")

		if s.HTTP != nil {
			errs = multierr.Append(errs, s.HTTP.Stop())
		}
		errs = multierr.Append(errs, s.Cron.Stop())
		s.cancel()
	case s.flushPending.CompareAndSwap(true, false):
		s.Logger.Info("Retrying cache flush")
	default:
		return types.ErrServiceIsNotRunning
	}

	if err := s.Caches.Close(ctx); err != nil {
		s.flushPending.Store(true)
		s.Logger.ErrorWithErrStack("Failed to flush caches, store left open", err)
		return multierr.Append(errs, err)
	}
	s.Logger.Info("Caches flushed")

	errs = multierr.Append(errs, s.Database.Stop())
	errs = multierr.Append(errs, s.Health.Stop())
	errs = multierr.Append(errs, s.Metrics.Stop())

	if errs != nil {
		s.Logger.Error("Service stopped with errors", zap.Error(errs))
	} else {
		s.Logger.Info("Service stopped gracefully")
	}
	_ = s.Logger.Stop()
	s.setState(StateStopped)

	return errs
}

// Run starts the service and blocks until ctx is done, then stops it.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}

	<-ctx.Done()

	return s.Stop(context.WithoutCancel(ctx))
}

func (s *Service) IsRunning() bool {
	return s.getState() == StateRunning
}

func (s *Service) getState() State {
	return s.state.Load().(State)
}

func (s *Service) setState(newState State) {
	s.state.Store(newState)
}

func (s *Service) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(from, to)
}
