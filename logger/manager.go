package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

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
	logger types.Logger
	state  atomic.Value
}

type levelSetter interface {
	SetLevel(level string) bool
}

// NewManager builds the configured logger. A successful config reload
// applies the new logger.level without restarting.
func NewManager(config types.ConfigManager) (types.LoggerManager, error) {
	loggerConfig := config.GetConfig().Logger
	if loggerConfig == nil {
		return nil, types.ErrLoggerConfigInvalid
	}

	logger, err := NewDefaultLogger(loggerConfig)
	if err != nil {
		return nil, types.WrapError(err, "failed to create logger")
	}

	manager := newManager(logger)
	config.OnReload(func(cfg *types.ServiceConfig) {
		if cfg.Logger != nil {
			manager.SetLevel(cfg.Logger.Level)
		}
	})

	return manager, nil
}

// NewFromLogger wraps an already built logger, mostly for tests.
func NewFromLogger(logger *zap.Logger) types.LoggerManager {
	return newManager(NewZapWrapper(logger))
}

func newManager(logger types.Logger) *Manager {
	manager := &Manager{
		logger: logger,
	}

	manager.state.Store(StateStopped)

	return manager
}

func (m *Manager) Start() error {
	if !m.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	m.setState(StateRunning)
	return nil
}

func (m *Manager) Stop() error {
	if !m.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer m.setState(StateStopped)

	if syncer, hasSyncer := m.logger.(interface{ Sync() error }); hasSyncer {
		// stdout/stderr syncs return EINVAL on most terminals.
		_ = syncer.Sync()
	}

	return nil
}

func (m *Manager) IsRunning() bool {
	return m.getState() == StateRunning
}

// SetLevel changes the minimum level of the underlying logger if it
// supports runtime changes.
func (m *Manager) SetLevel(level string) {
	if setter, ok := m.logger.(levelSetter); ok && setter.SetLevel(level) {
		m.logger.Info("Log level changed", zap.String("level", level))
	}
}

func (m *Manager) Error(msg string, fields ...zap.Field) {
	m.logger.Error(msg, fields...)
}

func (m *Manager) ErrorWithErrStack(msg string, err error, fields ...zap.Field) {
	m.logger.ErrorWithErrStack(msg, err, fields...)
}

func (m *Manager) Warn(msg string, fields ...zap.Field) {
	m.logger.Warn(msg, fields...)
}

func (m *Manager) Info(msg string, fields ...zap.Field) {
	m.logger.Info(msg, fields...)
}

func (m *Manager) Debug(msg string, fields ...zap.Field) {
	m.logger.Debug(msg, fields...)
}

func (m *Manager) Log(lvl zapcore.Level, msg string, fields ...zap.Field) {
	m.logger.Log(lvl, msg, fields...)
}

func (m *Manager) getState() State {
	return m.state.Load().(State)
}

func (m *Manager) setState(newState State) bool {
	currentState := m.getState()
	return m.state.CompareAndSwap(currentState, newState)
}

func (m *Manager) transitionState(from, to State) bool {
	return m.state.CompareAndSwap(from, to)
}
