package database

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/types"
)

// RedisDB keeps values under "<prefix>:<bucket>:<hex key>" with no expiry.
type RedisDB struct {
	client  *redis.Client
	logger  types.Logger
	prefix  string
	timeout time.Duration
}

func NewRedisDB(config *types.DatabaseConfig, logger types.Logger) (*RedisDB, error) {
	redisConfig := config.Redis
	if redisConfig == nil {
		return nil, errors.New("redis settings are required")
	}

	timeout := redisConfig.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	prefix := redisConfig.KeyPrefix
	if prefix == "" {
		prefix = "sai-proxy"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisConfig.Addr,
		Password:     redisConfig.Password,
		DB:           redisConfig.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	return &RedisDB{
		client:  client,
		logger:  logger,
		prefix:  prefix,
		timeout: timeout,
	}, nil
}

func (r *RedisDB) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.Ping(ctx); err != nil {
		return err
	}

	r.logger.Debug("Redis connected", zap.String("addr", r.client.Options().Addr))
	return nil
}

func (r *RedisDB) Stop() error {
	return errors.Wrap(r.client.Close(), "failed to close redis client")
}

func (r *RedisDB) IsRunning() bool {
	return r.client != nil
}

func (r *RedisDB) Ping(ctx context.Context) error {
	return errors.Wrap(r.client.Ping(ctx).Err(), "redis ping")
}

func (r *RedisDB) Get(ctx context.Context, bucket string, key []byte) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.buildFullKey(bucket, key)).Bytes()
	if err != nil {
		if types.IsError(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "redis get %s", bucket)
	}

	return value, true, nil
}

func (r *RedisDB) Put(ctx context.Context, bucket string, key, value []byte) error {
	if err := r.client.Set(ctx, r.buildFullKey(bucket, key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", bucket)
	}
	return nil
}

func (r *RedisDB) buildFullKey(bucket string, key []byte) string {
	var b strings.Builder
	b.Grow(len(r.prefix) + len(bucket) + 2 + hex.EncodedLen(len(key)))
	b.WriteString(r.prefix)
	b.WriteByte(':')
	b.WriteString(bucket)
	b.WriteByte(':')
	b.WriteString(hex.EncodeToString(key))
	return b.String()
}
