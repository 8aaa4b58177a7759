package database

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/saiset-co/sai-proxy/types"
)

// Codec converts bucket values to and from their stored form.
type Codec[V any] interface {
	Encode(value V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// JSONCodec stores *T as JSON.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(value *T) ([]byte, error) {
	if value == nil {
		return nil, codecError(errors.New("nil value"))
	}

	data, err := sonic.ConfigStd.Marshal(value)
	if err != nil {
		return nil, codecError(errors.Wrap(err, "json encode"))
	}
	return data, nil
}

func (JSONCodec[T]) Decode(data []byte) (*T, error) {
	value := new(T)
	if err := sonic.ConfigStd.Unmarshal(data, value); err != nil {
		return nil, codecError(errors.Wrap(err, "json decode"))
	}
	return value, nil
}

// UUIDCodec stores identifiers in their compact 16-byte form.
type UUIDCodec struct{}

func (UUIDCodec) Encode(id uuid.UUID) ([]byte, error) {
	data, err := id.MarshalBinary()
	if err != nil {
		return nil, codecError(errors.Wrap(err, "uuid encode"))
	}
	return data, nil
}

func (UUIDCodec) Decode(data []byte) (uuid.UUID, error) {
	id, err := uuid.FromBytes(data)
	if err != nil {
		return uuid.Nil, codecError(errors.Wrap(err, "uuid decode"))
	}
	return id, nil
}

// BrotliCodec compresses the output of an inner codec. A Level below zero
// disables compression.
type BrotliCodec[V any] struct {
	Inner Codec[V]
	Level int
}

func NewBrotliCodec[V any](inner Codec[V], level int) Codec[V] {
	if level < 0 {
		return inner
	}
	if level > brotli.BestCompression {
		level = brotli.BestCompression
	}
	return BrotliCodec[V]{Inner: inner, Level: level}
}

func (c BrotliCodec[V]) Encode(value V) ([]byte, error) {
	raw, err := c.Inner.Encode(value)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, c.Level)
	if _, err := writer.Write(raw); err != nil {
		return nil, codecError(errors.Wrap(err, "brotli write"))
	}
	if err := writer.Close(); err != nil {
		return nil, codecError(errors.Wrap(err, "brotli close"))
	}

	return buf.Bytes(), nil
}

func (c BrotliCodec[V]) Decode(data []byte) (V, error) {
	raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		var zero V
		return zero, codecError(errors.Wrap(err, "brotli read"))
	}

	return c.Inner.Decode(raw)
}

func codecError(err error) error {
	return fmt.Errorf("%w: %w", types.ErrCodecFailed, err)
}
