package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Store is a byte-oriented key/value cache with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T
	b, err := s.Get(ctx, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		var zero T
		return zero, &DecodeError{Key: key, Err: err}
	}
	return out, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any, expiration time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, b, expiration)
}

// DecodeError reports a stored value that does not decode into the requested type.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Key, e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// HashKey shortens an arbitrary string into a fixed-size key segment.
func HashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
