package database

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

var customDatabaseCreators = make(map[string]types.DatabaseCreator)

func RegisterDatabase(databaseType string, creator types.DatabaseCreator) {
	customDatabaseCreators[databaseType] = creator
}

// NewDatabase opens the engine named by config.Type and wraps it with
// state tracking, logging and per-operation metrics.
func NewDatabase(config *types.DatabaseConfig, logger types.Logger, metrics types.MetricsManager) (types.Database, error) {
	if config == nil {
		return nil, types.Errorf(types.ErrDatabaseOpenFailed, "database config is nil")
	}

	var impl types.Database
	var err error

	switch config.Type {
	case "clover":
		impl, err = NewCloverDB(config, logger)
	case "redis":
		impl, err = NewRedisDB(config, logger)
	case "memory":
		impl = NewMemoryDB(logger)
	default:
		creator, exists := customDatabaseCreators[config.Type]
		if !exists {
			return nil, types.Errorf(types.ErrDatabaseTypeUnknown, "type: %s", config.Type)
		}
		impl, err = creator(config, logger)
	}

	if err != nil {
		return nil, types.Errorf(types.ErrDatabaseOpenFailed, "%s: %v", config.Type, err)
	}

	return newInstrumentedDatabase(config.Type, logger, metrics, impl), nil
}

type instrumentedDatabase struct {
	name    string
	impl    types.Database
	logger  types.Logger
	metrics types.MetricsManager
	state   atomic.Value
}

func newInstrumentedDatabase(name string, logger types.Logger, metrics types.MetricsManager, impl types.Database) *instrumentedDatabase {
	instrumented := &instrumentedDatabase{
		name:    name,
		impl:    impl,
		logger:  logger,
		metrics: metrics,
	}

	instrumented.state.Store(StateStopped)
	return instrumented
}

func (dm *instrumentedDatabase) Start() error {
	if !dm.transitionState(StateStopped, StateStarting) {
		return types.ErrServerAlreadyRunning
	}

	if err := dm.impl.Start(); err != nil {
		dm.setState(StateStopped)
		return err
	}

	dm.setState(StateRunning)
	dm.logger.Info("Database started", zap.String("type", dm.name))
	return nil
}

func (dm *instrumentedDatabase) Stop() error {
	if !dm.transitionState(StateRunning, StateStopping) {
		return types.ErrServerNotRunning
	}

	defer dm.setState(StateStopped)

	if err := dm.impl.Stop(); err != nil {
		dm.logger.ErrorWithErrStack("Failed to stop database", err, zap.String("type", dm.name))
		return err
	}

	dm.logger.Info("Database stopped gracefully", zap.String("type", dm.name))
	return nil
}

func (dm *instrumentedDatabase) IsRunning() bool {
	return dm.getState() == StateRunning
}

func (dm *instrumentedDatabase) Get(ctx context.Context, bucket string, key []byte) ([]byte, bool, error) {
	if err := dm.check(bucket, key); err != nil {
		return nil, false, err
	}

	start := time.Now()
	value, found, err := dm.impl.Get(ctx, bucket, key)
	dm.record("get", bucket, start, err)

	return value, found, err
}

func (dm *instrumentedDatabase) Put(ctx context.Context, bucket string, key, value []byte) error {
	if err := dm.check(bucket, key); err != nil {
		return err
	}

	start := time.Now()
	err := dm.impl.Put(ctx, bucket, key, value)
	dm.record("put", bucket, start, err)

	return err
}

func (dm *instrumentedDatabase) Ping(ctx context.Context) error {
	if !dm.IsRunning() {
		return types.ErrDatabaseNotRunning
	}
	return dm.impl.Ping(ctx)
}

func (dm *instrumentedDatabase) check(bucket string, key []byte) error {
	if !dm.IsRunning() {
		return types.ErrDatabaseNotRunning
	}
	if bucket == "" {
		return types.ErrDatabaseBucketEmpty
	}
	if len(key) == 0 {
		return types.Errorf(types.ErrDatabaseKeyInvalid, "empty key for bucket %s", bucket)
	}
	return nil
}

func (dm *instrumentedDatabase) record(operation, bucket string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}

	dm.metrics.Counter("database_operations_total", map[string]string{
		"operation": operation,
		"bucket":    bucket,
		"result":    result,
	}).Inc()

	dm.metrics.Histogram("database_operation_duration_seconds",
		[]float64{0.0001, 0.001, 0.01, 0.1, 1.0},
		map[string]string{"operation": operation},
	).ObserveDuration(start)
}

func (dm *instrumentedDatabase) getState() State {
	return dm.state.Load().(State)
}

func (dm *instrumentedDatabase) setState(newState State) {
	dm.state.Store(newState)
}

func (dm *instrumentedDatabase) transitionState(from, to State) bool {
	return dm.state.CompareAndSwap(from, to)
}
