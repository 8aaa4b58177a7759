package database

import (
	"context"
	"fmt"

	"github.com/saiset-co/sai-proxy/types"
)

// Bucket is a typed view over one keyspace of a Database. Each bucket owns
// its key encoding and value codec; it is the persistent store a managed
// cache reads through and writes back to.
type Bucket[K any, V any] struct {
	db    types.Database
	name  string
	keys  KeyEncoder[K]
	codec Codec[V]
}

func NewBucket[K any, V any](db types.Database, name string, keys KeyEncoder[K], codec Codec[V]) *Bucket[K, V] {
	return &Bucket[K, V]{
		db:    db,
		name:  name,
		keys:  keys,
		codec: codec,
	}
}

func (b *Bucket[K, V]) Name() string {
	return b.name
}

// ValidateKey reports whether key can be stored in this bucket.
func (b *Bucket[K, V]) ValidateKey(key K) error {
	_, err := b.keys.EncodeKey(key)
	return err
}

func (b *Bucket[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V

	encodedKey, err := b.keys.EncodeKey(key)
	if err != nil {
		return zero, false, err
	}

	data, found, err := b.db.Get(ctx, b.name, encodedKey)
	if err != nil || !found {
		return zero, false, err
	}

	value, err := b.codec.Decode(data)
	if err != nil {
		return zero, false, fmt.Errorf("bucket %s: %w", b.name, err)
	}

	return value, true, nil
}

func (b *Bucket[K, V]) Put(ctx context.Context, key K, value V) error {
	encodedKey, err := b.keys.EncodeKey(key)
	if err != nil {
		return err
	}

	data, err := b.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", b.name, err)
	}

	return b.db.Put(ctx, b.name, encodedKey, data)
}
