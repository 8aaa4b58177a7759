package config

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saiset-co/sai-proxy/types"
)

// Manager owns the current configuration. Reload swaps the active config
// only when the file parses and validates; otherwise the previous one stays.
type Manager struct {
	ctx         context.Context
	config      atomic.Pointer[types.ServiceConfig]
	parser      atomic.Pointer[Parser]
	configPath  string
	loader      *Loader
	fresh       bool
	listenersMu sync.RWMutex
	listeners   []func(*types.ServiceConfig)
	loadTimeout time.Duration
}

func NewManager(ctx context.Context, configPath string) (*Manager, error) {
	cm := &Manager{
		ctx:         ctx,
		configPath:  configPath,
		loader:      NewLoader(),
		loadTimeout: 30 * time.Second,
	}

	fresh, err := cm.loader.EnsureFile(configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to prepare config file")
	}
	cm.fresh = fresh

	if err := cm.Load(); err != nil {
		return nil, types.WrapError(err, "failed to load initial configuration")
	}

	return cm, nil
}

// NewStaticManager serves a fixed, already validated config. Reload is a no-op.
func NewStaticManager(config *types.ServiceConfig) *Manager {
	cm := &Manager{ctx: context.Background(), loader: NewLoader()}
	cm.store(config)
	return cm
}

// Fresh reports whether the config file did not exist and defaults were written.
func (cm *Manager) Fresh() bool {
	return cm.fresh
}

func (cm *Manager) Path() string {
	return cm.configPath
}

func (cm *Manager) Load() error {
	if cm.configPath == "" {
		return nil
	}

	loadCtx, cancel := context.WithTimeout(cm.ctx, cm.loadTimeout)
	defer cancel()

	config, err := cm.loader.LoadFromFile(loadCtx, cm.configPath)
	if err != nil {
		return types.Errorf(types.ErrConfigLoadFailed, "%v", err)
	}

	cm.store(config)
	cm.notify(config)

	return nil
}

func (cm *Manager) Reload() error {
	return cm.Load()
}

// OnReload registers fn to run after every successful load.
func (cm *Manager) OnReload(fn func(*types.ServiceConfig)) {
	cm.listenersMu.Lock()
	defer cm.listenersMu.Unlock()
	cm.listeners = append(cm.listeners, fn)
}

func (cm *Manager) GetConfig() *types.ServiceConfig {
	return cm.config.Load()
}

func (cm *Manager) GetValue(path string, defaultValue interface{}) interface{} {
	parser := cm.parser.Load()
	if parser == nil {
		return defaultValue
	}
	return parser.GetValue(path, defaultValue)
}

func (cm *Manager) GetAs(path string, target interface{}) error {
	parser := cm.parser.Load()
	if parser == nil {
		return types.ErrConfigIsNil
	}
	return parser.GetAs(path, target)
}

func (cm *Manager) store(config *types.ServiceConfig) {
	cm.parser.Store(NewParser(config))
	cm.config.Store(config)
}

func (cm *Manager) notify(config *types.ServiceConfig) {
	cm.listenersMu.RLock()
	listeners := append([]func(*types.ServiceConfig){}, cm.listeners...)
	cm.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(config)
	}
}
