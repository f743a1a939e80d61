package cache

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type item struct {
	ID   int    `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

// recordingStore wraps a Store, records writes and can be told to fail.
type recordingStore struct {
	Store

	mu      sync.Mutex
	sets    map[string]time.Duration
	failGet error
	failSet error
}

func newRecordingStore(t *testing.T) *recordingStore {
	t.Helper()
	mem, err := NewMemoryStore(MemoryConfig{})
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { mem.Close() })
	return &recordingStore{Store: mem, sets: make(map[string]time.Duration)}
}

func (s *recordingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	failGet := s.failGet
	s.mu.Unlock()
	if failGet != nil {
		return nil, failGet
	}
	return s.Store.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	failSet := s.failSet
	if failSet == nil {
		s.sets[key] = ttl
	}
	s.mu.Unlock()
	if failSet != nil {
		return failSet
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func (s *recordingStore) ttlOf(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ttl, ok := s.sets[key]
	return ttl, ok
}

func countingLoader(calls *int32, items []item) ListLoader[item] {
	return func(ctx context.Context) ([]item, error) {
		atomic.AddInt32(calls, 1)
		out := make([]item, len(items))
		copy(out, items)
		return out, nil
	}
}

func newTestListCache(store Store) *ListCache[item] {
	return NewListCache[item](store, ListCacheOptions{Namespace: "products"})
}

func TestListCacheKeyFormat(t *testing.T) {
	c := newTestListCache(newRecordingStore(t))

	got := c.Key("abc", ListParams{Search: "mouse", SortBy: "price", Direction: "desc"})
	want := "products:list:vabc:q=mouse:o=price:d=desc"
	if got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}

	got = c.Key("abc", ListParams{})
	want = "products:list:vabc:q=:o=:d="
	if got != want {
		t.Fatalf("Key() with empty params = %q, want %q", got, want)
	}

	if c.VersionKey() != "products:version" {
		t.Fatalf("VersionKey() = %q", c.VersionKey())
	}
}

func TestListCacheInitializesVersionWithoutExpiry(t *testing.T) {
	store := newRecordingStore(t)
	c := newTestListCache(store)
	ctx := context.Background()

	if _, ok, _ := c.Version(ctx); ok {
		t.Fatal("version should not exist before the first read")
	}

	var calls int32
	if _, err := c.List(ctx, ListParams{}, countingLoader(&calls, nil)); err != nil {
		t.Fatalf("List: %v", err)
	}

	version, ok, err := c.Version(ctx)
	if err != nil || !ok || version == "" {
		t.Fatalf("Version() = %q, %v, %v; want a token", version, ok, err)
	}
	if ttl, _ := store.ttlOf(c.VersionKey()); ttl != NoExpiry {
		t.Fatalf("version written with ttl %v, want no expiry", ttl)
	}
}

func TestListCacheReadThroughThenHit(t *testing.T) {
	store := newRecordingStore(t)
	c := newTestListCache(store)
	ctx := context.Background()

	var calls int32
	load := countingLoader(&calls, []item{{1, "A"}, {2, "B"}})

	first, err := c.List(ctx, ListParams{}, load)
	if err != nil {
		t.Fatalf("first List: %v", err)
	}
	second, err := c.List(ctx, ListParams{}, load)
	if err != nil {
		t.Fatalf("second List: %v", err)
	}

	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached list differs: %v vs %v", first, second)
	}

	version, _, _ := c.Version(ctx)
	key := c.Key(version, ListParams{})
	ttl, ok := store.ttlOf(key)
	if !ok {
		t.Fatalf("list entry %q was not written", key)
	}
	if ttl != DefaultListTTL {
		t.Fatalf("list ttl = %v, want %v", ttl, DefaultListTTL)
	}
}

func TestListCacheEmptyParamsShareKey(t *testing.T) {
	c := newTestListCache(newRecordingStore(t))
	ctx := context.Background()

	var calls int32
	load := countingLoader(&calls, []item{{1, "A"}})

	if _, err := c.List(ctx, ListParams{}, load); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := c.List(ctx, ListParams{Search: "", SortBy: "", Direction: ""}, load); err != nil {
		t.Fatalf("List: %v", err)
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

func TestListCacheDistinctParamsDistinctEntries(t *testing.T) {
	c := newTestListCache(newRecordingStore(t))
	ctx := context.Background()

	var calls int32
	load := countingLoader(&calls, []item{{1, "A"}})

	params := []ListParams{
		{},
		{Search: "A"},
		{SortBy: "name"},
		{SortBy: "name", Direction: "desc"},
	}
	for _, p := range params {
		if _, err := c.List(ctx, p, load); err != nil {
			t.Fatalf("List(%+v): %v", p, err)
		}
	}
	if int(calls) != len(params) {
		t.Fatalf("loader called %d times, want %d", calls, len(params))
	}
}

func TestListCacheBumpVersionInvalidates(t *testing.T) {
	store := newRecordingStore(t)
	c := newTestListCache(store)
	ctx := context.Background()

	var calls int32
	items := []item{{1, "A"}}
	load := func(ctx context.Context) ([]item, error) {
		atomic.AddInt32(&calls, 1)
		return append([]item(nil), items...), nil
	}

	if _, err := c.List(ctx, ListParams{}, load); err != nil {
		t.Fatalf("List: %v", err)
	}
	before, _, _ := c.Version(ctx)

	items = append(items, item{2, "B"})
	after, err := c.BumpVersion(ctx)
	if err != nil {
		t.Fatalf("BumpVersion: %v", err)
	}
	if after == before {
		t.Fatal("BumpVersion kept the same token")
	}
	if ttl, _ := store.ttlOf(c.VersionKey()); ttl != NoExpiry {
		t.Fatalf("bumped version ttl = %v, want no expiry", ttl)
	}

	got, err := c.List(ctx, ListParams{}, load)
	if err != nil {
		t.Fatalf("List after bump: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List after bump = %v, want 2 items", got)
	}
	if calls != 2 {
		t.Fatalf("loader called %d times, want 2", calls)
	}

	// The previous generation is abandoned, not purged.
	if _, err := store.Get(ctx, c.Key(before, ListParams{})); err != nil {
		t.Fatalf("old generation entry should remain until TTL: %v", err)
	}
}

func TestListCacheResetStartsNewGeneration(t *testing.T) {
	c := newTestListCache(newRecordingStore(t))
	ctx := context.Background()

	var calls int32
	load := countingLoader(&calls, []item{{1, "A"}})

	if _, err := c.List(ctx, ListParams{}, load); err != nil {
		t.Fatalf("List: %v", err)
	}
	before, _, _ := c.Version(ctx)

	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, ok, _ := c.Version(ctx); ok {
		t.Fatal("version should be gone after Reset")
	}

	if _, err := c.List(ctx, ListParams{}, load); err != nil {
		t.Fatalf("List: %v", err)
	}
	after, _, _ := c.Version(ctx)
	if after == before {
		t.Fatal("Reset did not lead to a new token")
	}
	if calls != 2 {
		t.Fatalf("loader called %d times, want 2", calls)
	}
}

func TestListCacheLoaderErrorPropagates(t *testing.T) {
	store := newRecordingStore(t)
	c := newTestListCache(store)
	ctx := context.Background()

	boom := errors.New("db down")
	_, err := c.List(ctx, ListParams{}, func(ctx context.Context) ([]item, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("List error = %v, want %v", err, boom)
	}

	version, _, _ := c.Version(ctx)
	if _, ok := store.ttlOf(c.Key(version, ListParams{})); ok {
		t.Fatal("failed load must not write a cache entry")
	}
}

func TestListCacheStoreFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	unreachable := errors.New("connection refused")

	t.Run("get", func(t *testing.T) {
		store := newRecordingStore(t)
		store.failGet = unreachable
		c := newTestListCache(store)

		var calls int32
		_, err := c.List(ctx, ListParams{}, countingLoader(&calls, nil))
		if !errors.Is(err, unreachable) {
			t.Fatalf("List error = %v, want %v", err, unreachable)
		}
		if calls != 0 {
			t.Fatal("loader must not run when the store is unreachable")
		}
	})

	t.Run("set", func(t *testing.T) {
		store := newRecordingStore(t)
		store.failSet = unreachable
		c := newTestListCache(store)

		var calls int32
		_, err := c.List(ctx, ListParams{}, countingLoader(&calls, nil))
		if !errors.Is(err, unreachable) {
			t.Fatalf("List error = %v, want %v", err, unreachable)
		}
	})

	t.Run("bump", func(t *testing.T) {
		store := newRecordingStore(t)
		store.failSet = unreachable
		c := newTestListCache(store)

		if _, err := c.BumpVersion(ctx); !errors.Is(err, unreachable) {
			t.Fatalf("BumpVersion error = %v, want %v", err, unreachable)
		}
	})
}

func TestListCacheCodecMismatchIsMiss(t *testing.T) {
	store := newRecordingStore(t)
	ctx := context.Background()

	jsonCache := NewListCache[item](store, ListCacheOptions{Namespace: "products", Codec: JSONCodec{}})
	var calls int32
	if _, err := jsonCache.List(ctx, ListParams{}, countingLoader(&calls, []item{{1, "A"}})); err != nil {
		t.Fatalf("List: %v", err)
	}

	mpCache := NewListCache[item](store, ListCacheOptions{Namespace: "products", Codec: MsgpackCodec{}})
	got, err := mpCache.List(ctx, ListParams{}, countingLoader(&calls, []item{{1, "A"}}))
	if err != nil {
		t.Fatalf("List with other codec: %v", err)
	}
	if calls != 2 {
		t.Fatalf("loader called %d times, want 2 (mismatch refills)", calls)
	}
	if len(got) != 1 || got[0].Name != "A" {
		t.Fatalf("List = %v", got)
	}
}

func TestListCacheNilLoadIsCachedAsEmpty(t *testing.T) {
	c := newTestListCache(newRecordingStore(t))
	ctx := context.Background()

	var calls int32
	load := countingLoader(&calls, nil)
	for i := 0; i < 2; i++ {
		got, err := c.List(ctx, ListParams{Search: "nothing"}, load)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("List = %#v, want empty non-nil slice", got)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

func TestListCacheCustomTTL(t *testing.T) {
	store := newRecordingStore(t)
	c := NewListCache[item](store, ListCacheOptions{Namespace: "widgets", TTL: time.Minute})
	ctx := context.Background()

	var calls int32
	if _, err := c.List(ctx, ListParams{}, countingLoader(&calls, nil)); err != nil {
		t.Fatalf("List: %v", err)
	}
	version, _, _ := c.Version(ctx)
	key := c.Key(version, ListParams{})
	if !strings.HasPrefix(key, "widgets:list:") {
		t.Fatalf("key %q does not use namespace", key)
	}
	if ttl, _ := store.ttlOf(key); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}
}

func TestListCacheCollapsesConcurrentMisses(t *testing.T) {
	c := newTestListCache(newRecordingStore(t))
	ctx := context.Background()

	// Concurrent first reads would each mint their own token.
	if _, err := c.BumpVersion(ctx); err != nil {
		t.Fatalf("BumpVersion: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	load := func(ctx context.Context) ([]item, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return []item{{1, "A"}}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	list := func() {
		defer wg.Done()
		got, err := c.List(ctx, ListParams{}, load)
		if err == nil && len(got) != 1 {
			err = errors.New("unexpected list contents")
		}
		errs <- err
	}

	wg.Add(1)
	go list()
	<-started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go list()
	}

	// Let the late callers miss and join the fill in progress.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("loader called %d times, want 1", n)
	}
}

func TestListCacheCanceledCallerDoesNotFailSharedFill(t *testing.T) {
	c := newTestListCache(newRecordingStore(t))
	if _, err := c.BumpVersion(context.Background()); err != nil {
		t.Fatalf("BumpVersion: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) ([]item, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []item{{1, "A"}}, nil
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.List(ctxA, ListParams{}, load)
		errA <- err
	}()
	<-started

	type result struct {
		items []item
		err   error
	}
	var ownCalls int32
	resB := make(chan result, 1)
	go func() {
		items, err := c.List(context.Background(), ListParams{}, countingLoader(&ownCalls, nil))
		resB <- result{items, err}
	}()

	// B joins A's fill, then A's client goes away.
	time.Sleep(50 * time.Millisecond)
	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller err = %v, want context.Canceled", err)
	}

	close(release)
	r := <-resB
	if r.err != nil {
		t.Fatalf("waiting caller err = %v, want nil", r.err)
	}
	if len(r.items) != 1 || r.items[0].Name != "A" {
		t.Fatalf("waiting caller got %v", r.items)
	}
	if atomic.LoadInt32(&ownCalls) != 0 {
		t.Fatal("waiting caller ran its own load instead of sharing the fill")
	}

	// The shared fill was stored even though its starter left.
	var later int32
	if _, err := c.List(context.Background(), ListParams{}, countingLoader(&later, nil)); err != nil {
		t.Fatalf("List: %v", err)
	}
	if later != 0 {
		t.Fatal("fill result was not cached")
	}
}
