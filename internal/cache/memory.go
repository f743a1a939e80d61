package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryConfig sizes a MemoryStore.
type MemoryConfig struct {
	// MaxCost is the byte budget for stored values.
	MaxCost int64
}

// MemoryStore is an in-process Store backed by ristretto.
// Use this for development/testing or single-instance deployments:
// cache generations are not shared between processes.
type MemoryStore struct {
	cache *ristretto.Cache
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = 64 << 20
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        1e5,
		MaxCost:            maxCost,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &MemoryStore{cache: c}, nil
}

// Get retrieves a copy of the value stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}

	stored := v.([]byte)
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, nil
}

// Set stores a copy of value. The write is applied before Set returns.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	cost := int64(len(valueCopy))
	if cost == 0 {
		cost = 1
	}

	if !s.cache.SetWithTTL(key, valueCopy, cost, ttl) {
		return ErrStoreRejected
	}
	s.cache.Wait()
	return nil
}

// Delete removes a value by key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Del(key)
	return nil
}

// Ping always succeeds for the in-process store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops ristretto's background goroutines.
func (s *MemoryStore) Close() error {
	s.cache.Close()
	return nil
}

var _ Store = (*MemoryStore)(nil)
