package database

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/saiset-co/sai-proxy/types"
)

// KeyEncoder turns a typed key into the canonical bytes a bucket is keyed by.
type KeyEncoder[K any] interface {
	EncodeKey(key K) ([]byte, error)
}

// UUIDKey stores identifiers as their 16 raw bytes.
type UUIDKey struct{}

func (UUIDKey) EncodeKey(id uuid.UUID) ([]byte, error) {
	key := make([]byte, len(id))
	copy(key, id[:])
	return key, nil
}

// NameKey hashes case-insensitive names of bounded length into a fixed
// 32-byte key.
type NameKey struct {
	MaxLength int
}

func (k NameKey) EncodeKey(name string) ([]byte, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return nil, types.Errorf(types.ErrDatabaseKeyInvalid, "empty name")
	}
	if k.MaxLength > 0 && utf8.RuneCountInString(normalized) > k.MaxLength {
		return nil, types.Errorf(types.ErrDatabaseKeyInvalid, "name %q longer than %d", normalized, k.MaxLength)
	}

	sum := blake2b.Sum256([]byte(normalized))
	return sum[:], nil
}

// NormalizeName is the canonical form used for player and server names.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
