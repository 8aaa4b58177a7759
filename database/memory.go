package database

import (
	"context"
	"sync"

	"github.com/saiset-co/sai-proxy/types"
)

// MemoryDB is a process-local engine, used for tests and throwaway runs.
type MemoryDB struct {
	buckets map[string]map[string][]byte
	mutex   sync.RWMutex
	logger  types.Logger
}

func NewMemoryDB(logger types.Logger) *MemoryDB {
	return &MemoryDB{
		buckets: make(map[string]map[string][]byte),
		logger:  logger,
	}
}

func (m *MemoryDB) Start() error {
	m.logger.Debug("MemoryDB started")
	return nil
}

func (m *MemoryDB) Stop() error {
	m.logger.Debug("MemoryDB stopped")
	return nil
}

func (m *MemoryDB) IsRunning() bool {
	return true
}

func (m *MemoryDB) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryDB) Get(ctx context.Context, bucket string, key []byte) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	value, ok := m.buckets[bucket][string(key)]
	if !ok {
		return nil, false, nil
	}

	return append([]byte(nil), value...), true, nil
}

func (m *MemoryDB) Put(ctx context.Context, bucket string, key, value []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	entries, ok := m.buckets[bucket]
	if !ok {
		entries = make(map[string][]byte)
		m.buckets[bucket] = entries
	}
	entries[string(key)] = append([]byte(nil), value...)

	return nil
}
