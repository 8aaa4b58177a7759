package types

import (
	"context"
)

// Database is a bucketed byte-level key-value engine. Every bucket is an
// independent keyspace; callers encode keys and values themselves.
type Database interface {
	LifecycleManager
	Get(ctx context.Context, bucket string, key []byte) ([]byte, bool, error)
	Put(ctx context.Context, bucket string, key, value []byte) error
	Ping(ctx context.Context) error
}

type DatabaseCreator func(config *DatabaseConfig, logger Logger) (Database, error)
