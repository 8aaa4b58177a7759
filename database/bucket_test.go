package database

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/saiset-co/sai-proxy/types"
)

func TestBucketRoundTripWithCompression(t *testing.T) {
	db := openDatabase(t, &types.DatabaseConfig{Type: "memory"})
	defer db.Stop()

	bucket := NewBucket[uuid.UUID, *sample](db, "playerData", UUIDKey{}, NewBrotliCodec[*sample](JSONCodec[sample]{}, 5))
	ctx := context.Background()
	id := uuid.New()

	if _, found, err := bucket.Get(ctx, id); err != nil || found {
		t.Fatalf("expected empty bucket, found=%v err=%v", found, err)
	}

	if err := bucket.Put(ctx, id, &sample{Name: "Steve", Count: 3}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := bucket.Get(ctx, id)
	if err != nil || !found {
		t.Fatalf("expected stored value, found=%v err=%v", found, err)
	}
	if got.Name != "Steve" || got.Count != 3 {
		t.Fatalf("unexpected value %+v", got)
	}

	raw, _, _ := db.Get(ctx, "playerData", id[:])
	if bytes.Contains(raw, []byte("Steve")) {
		t.Fatalf("expected stored bytes to be compressed")
	}
}

func TestBucketNameKeysAreCaseInsensitive(t *testing.T) {
	db := openDatabase(t, &types.DatabaseConfig{Type: "memory"})
	defer db.Stop()

	bucket := NewBucket[string, uuid.UUID](db, "playerNames", NameKey{MaxLength: 16}, UUIDCodec{})
	ctx := context.Background()
	id := uuid.New()

	if err := bucket.Put(ctx, "Notch", id); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, found, err := bucket.Get(ctx, "  NOTCH ")
	if err != nil || !found {
		t.Fatalf("expected lookup by other case, found=%v err=%v", found, err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
}

func TestNameKeyValidation(t *testing.T) {
	keys := NameKey{MaxLength: 4}

	if _, err := keys.EncodeKey(""); !errors.Is(err, types.ErrDatabaseKeyInvalid) {
		t.Fatalf("expected invalid key for empty name, got %v", err)
	}
	if _, err := keys.EncodeKey(strings.Repeat("a", 5)); !errors.Is(err, types.ErrDatabaseKeyInvalid) {
		t.Fatalf("expected invalid key for long name, got %v", err)
	}

	key, err := keys.EncodeKey("abcd")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32-byte hashed key, got %d", len(key))
	}
}

func TestCodecErrors(t *testing.T) {
	if _, err := (UUIDCodec{}).Decode([]byte{1, 2, 3}); !errors.Is(err, types.ErrCodecFailed) {
		t.Fatalf("expected ErrCodecFailed for short uuid, got %v", err)
	}
	if _, err := (JSONCodec[sample]{}).Decode([]byte("{not json")); !errors.Is(err, types.ErrCodecFailed) {
		t.Fatalf("expected ErrCodecFailed for bad json, got %v", err)
	}
	if _, err := (JSONCodec[sample]{}).Encode(nil); !errors.Is(err, types.ErrCodecFailed) {
		t.Fatalf("expected ErrCodecFailed for nil value, got %v", err)
	}
}

func TestBrotliCodecDisabled(t *testing.T) {
	codec := NewBrotliCodec[uuid.UUID](UUIDCodec{}, -1)
	if _, ok := codec.(UUIDCodec); !ok {
		t.Fatalf("expected negative level to return inner codec, got %T", codec)
	}
}
