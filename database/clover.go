package database

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"os"
	"sync"

	"github.com/ostafen/clover"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-proxy/types"
)

const (
	cloverKeyField   = "key"
	cloverValueField = "value"
)

// CloverDB stores every bucket as a clover collection holding one
// document per key: {key: hex(key), value: base64(value)}.
type CloverDB struct {
	db     *clover.DB
	logger types.Logger
	path   string
	// clover has no upsert, so put is a query followed by insert or update.
	mu          sync.Mutex
	collections sync.Map
}

func NewCloverDB(config *types.DatabaseConfig, logger types.Logger) (*CloverDB, error) {
	if config.Path != "" {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create clover directory")
		}
	}

	db, err := clover.Open(config.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CloverDB")
	}

	return &CloverDB{
		db:     db,
		logger: logger,
		path:   config.Path,
	}, nil
}

func (c *CloverDB) Start() error {
	c.logger.Debug("CloverDB opened", zap.String("path", c.path))
	return nil
}

func (c *CloverDB) Stop() error {
	if err := c.db.Close(); err != nil {
		return errors.Wrap(err, "failed to close CloverDB")
	}
	return nil
}

func (c *CloverDB) IsRunning() bool {
	return c.db != nil
}

func (c *CloverDB) Ping(ctx context.Context) error {
	_, err := c.db.HasCollection("__ping__")
	return errors.Wrap(err, "clover ping")
}

func (c *CloverDB) Get(ctx context.Context, bucket string, key []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	exists, err := c.hasCollection(bucket)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}

	doc, err := c.db.Query(bucket).Where(clover.Field(cloverKeyField).Eq(hex.EncodeToString(key))).FindFirst()
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to query %s", bucket)
	}
	if doc == nil {
		return nil, false, nil
	}

	encoded, ok := doc.Get(cloverValueField).(string)
	if !ok {
		return nil, false, errors.Errorf("document in %s has no %s field", bucket, cloverValueField)
	}

	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to decode value in %s", bucket)
	}

	return value, true, nil
}

func (c *CloverDB) Put(ctx context.Context, bucket string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureCollection(bucket); err != nil {
		return err
	}

	hexKey := hex.EncodeToString(key)
	encoded := base64.StdEncoding.EncodeToString(value)

	query := c.db.Query(bucket).Where(clover.Field(cloverKeyField).Eq(hexKey))

	count, err := query.Count()
	if err != nil {
		return errors.Wrapf(err, "failed to check key in %s", bucket)
	}

	if count > 0 {
		if err := query.Update(map[string]interface{}{cloverValueField: encoded}); err != nil {
			return errors.Wrapf(err, "failed to update %s", bucket)
		}
		return nil
	}

	doc := clover.NewDocument()
	doc.Set(cloverKeyField, hexKey)
	doc.Set(cloverValueField, encoded)

	if err := c.db.Insert(bucket, doc); err != nil {
		return errors.Wrapf(err, "failed to insert into %s", bucket)
	}

	return nil
}

func (c *CloverDB) hasCollection(bucket string) (bool, error) {
	if _, ok := c.collections.Load(bucket); ok {
		return true, nil
	}

	exists, err := c.db.HasCollection(bucket)
	if err != nil {
		return false, errors.Wrap(err, "failed to check collection existence")
	}
	if exists {
		c.collections.Store(bucket, struct{}{})
	}

	return exists, nil
}

func (c *CloverDB) ensureCollection(bucket string) error {
	exists, err := c.hasCollection(bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := c.db.CreateCollection(bucket); err != nil {
		return errors.Wrapf(err, "failed to create collection %s", bucket)
	}
	c.collections.Store(bucket, struct{}{})

	return nil
}
