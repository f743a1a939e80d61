package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the key-value capability the list cache is built on.
// Implementations must be safe for concurrent use. Every process that
// shares a Store shares the same cache generations.
type Store interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A ttl of NoExpiry keeps the entry until it is overwritten.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// NoExpiry marks a Set without time-to-live.
const NoExpiry time.Duration = 0

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"

	// ErrStoreRejected indicates the backend refused to keep a value.
	ErrStoreRejected CacheError = "cache store rejected value"
)

// GetString reads a plain string value. ok is false on a miss.
func GetString(ctx context.Context, s Store, key string) (value string, ok bool, err error) {
	b, err := s.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// SetString writes a plain string value.
func SetString(ctx context.Context, s Store, key, value string, ttl time.Duration) error {
	return s.Set(ctx, key, []byte(value), ttl)
}

// GetValue reads and decodes a structured value. ok is false on a miss,
// including values written by a different codec.
func GetValue[T any](ctx context.Context, s Store, codec Codec, key string) (value T, ok bool, err error) {
	b, err := s.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return value, false, nil
	}
	if err != nil {
		return value, false, err
	}

	if err := codec.Decode(b, &value); err != nil {
		if errors.Is(err, ErrCodecMismatch) {
			return value, false, nil
		}
		return value, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return value, true, nil
}

// SetValue encodes and writes a structured value.
func SetValue[T any](ctx context.Context, s Store, codec Codec, key string, value T, ttl time.Duration) error {
	b, err := codec.Encode(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, b, ttl)
}
