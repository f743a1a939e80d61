package cache

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"productcatalog-api/pkg/uid"

	"golang.org/x/sync/singleflight"
)

// DefaultListTTL is how long a cached list stays eligible.
const DefaultListTTL = 7 * time.Minute

// DefaultFillTimeout bounds one shared load-and-store on a miss.
const DefaultFillTimeout = 30 * time.Second

// ListParams identifies one list query. Empty strings stand for absent
// parameters and render as empty key segments.
type ListParams struct {
	Search    string
	SortBy    string
	Direction string
}

// ListLoader fetches a list from the source of truth on a cache miss.
type ListLoader[T any] func(ctx context.Context) ([]T, error)

// ListCacheOptions configures a ListCache.
type ListCacheOptions struct {
	// Namespace prefixes the version and list keys, e.g. "products".
	Namespace string
	// TTL bounds the lifetime of each list entry. Defaults to DefaultListTTL.
	TTL time.Duration
	// FillTimeout bounds a shared fill, which outlives any single
	// caller's cancellation. Defaults to DefaultFillTimeout.
	FillTimeout time.Duration
	Codec       Codec
	Logger      *log.Logger
}

// ListCache is a cache-aside layer for filtered, sorted lists of one
// entity type. Every list key embeds the collection's current version
// token; BumpVersion replaces the token so all earlier entries become
// unreachable and age out through their TTL.
type ListCache[T any] struct {
	store       Store
	codec       Codec
	namespace   string
	ttl         time.Duration
	fillTimeout time.Duration
	logger      *log.Logger
	fills       singleflight.Group
}

// NewListCache creates a list cache over store.
func NewListCache[T any](store Store, opts ListCacheOptions) *ListCache[T] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultListTTL
	}
	if opts.FillTimeout <= 0 {
		opts.FillTimeout = DefaultFillTimeout
	}
	if opts.Codec == nil {
		opts.Codec = JSONCodec{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}

	return &ListCache[T]{
		store:       store,
		codec:       opts.Codec,
		namespace:   opts.Namespace,
		ttl:         opts.TTL,
		fillTimeout: opts.FillTimeout,
		logger:      opts.Logger,
	}
}

// VersionKey is the key holding the collection's version token.
func (c *ListCache[T]) VersionKey() string {
	return c.namespace + ":version"
}

// Key builds the list key for a version and query.
func (c *ListCache[T]) Key(version string, p ListParams) string {
	return fmt.Sprintf("%s:list:v%s:q=%s:o=%s:d=%s", c.namespace, version, p.Search, p.SortBy, p.Direction)
}

// TTL returns the lifetime applied to list entries.
func (c *ListCache[T]) TTL() time.Duration {
	return c.ttl
}

// List returns the cached list for p, loading and storing it on a miss.
// Store failures are returned to the caller; the cache is never bypassed.
// Loader errors are returned unchanged and nothing is stored.
func (c *ListCache[T]) List(ctx context.Context, p ListParams, load ListLoader[T]) ([]T, error) {
	version, err := c.currentVersion(ctx)
	if err != nil {
		return nil, err
	}
	key := c.Key(version, p)

	cached, ok, err := GetValue[[]T](ctx, c.store, c.codec, key)
	if err != nil {
		return nil, fmt.Errorf("list cache lookup: %w", err)
	}
	if ok {
		return cached, nil
	}

	// Callers missing the same key share one fill. The fill is detached
	// from the caller that started it, so a disconnecting client cannot
	// fail the others; each caller still stops waiting on its own ctx.
	fill := c.fills.DoChan(key, func() (interface{}, error) {
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fillTimeout)
		defer cancel()

		items, err := load(fillCtx)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []T{}
		}
		if err := SetValue(fillCtx, c.store, c.codec, key, items, c.ttl); err != nil {
			return nil, fmt.Errorf("list cache populate: %w", err)
		}
		return items, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-fill:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Printf("[ListCache] Shared fill for %s", key)
		}
		return res.Val.([]T), nil
	}
}

// BumpVersion starts a new cache generation. Call it after a write has
// been committed, never before.
func (c *ListCache[T]) BumpVersion(ctx context.Context) (string, error) {
	version := uid.Token()
	if err := SetString(ctx, c.store, c.VersionKey(), version, NoExpiry); err != nil {
		return "", fmt.Errorf("bump %s version: %w", c.namespace, err)
	}
	c.logger.Printf("[ListCache] %s version -> %s", c.namespace, version)
	return version, nil
}

// Version returns the current version token without creating one.
func (c *ListCache[T]) Version(ctx context.Context) (string, bool, error) {
	return GetString(ctx, c.store, c.VersionKey())
}

// Reset removes the version token. The next List mints a fresh one, so
// the effect on readers is the same as BumpVersion.
func (c *ListCache[T]) Reset(ctx context.Context) error {
	if err := c.store.Delete(ctx, c.VersionKey()); err != nil {
		return fmt.Errorf("reset %s version: %w", c.namespace, err)
	}
	c.logger.Printf("[ListCache] %s version removed", c.namespace)
	return nil
}

func (c *ListCache[T]) currentVersion(ctx context.Context) (string, error) {
	version, ok, err := GetString(ctx, c.store, c.VersionKey())
	if err != nil {
		return "", fmt.Errorf("read %s version: %w", c.namespace, err)
	}
	if ok && version != "" {
		return version, nil
	}

	version = uid.Token()
	if err := SetString(ctx, c.store, c.VersionKey(), version, NoExpiry); err != nil {
		return "", fmt.Errorf("init %s version: %w", c.namespace, err)
	}
	c.logger.Printf("[ListCache] %s version initialized: %s", c.namespace, version)
	return version, nil
}
