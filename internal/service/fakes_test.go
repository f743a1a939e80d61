package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"productcatalog-api/internal/cache"
	"productcatalog-api/internal/model"
	"productcatalog-api/internal/repository"
)

// eventLog records repository and store activity in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeRepo struct {
	mu        sync.Mutex
	products  map[int64]model.Product
	nextID    int64
	listCalls int
	log       *eventLog
}

func newFakeRepo(log *eventLog) *fakeRepo {
	return &fakeRepo{products: make(map[int64]model.Product), log: log}
}

func (r *fakeRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, model.ErrProductNotFound
	}
	return &p, nil
}

func (r *fakeRepo) List(ctx context.Context, q model.ListQuery) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	r.log.add("list")

	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		if q.Search == "" || strings.Contains(p.Name, q.Search) {
			out = append(out, p)
		}
	}

	column, desc := q.SortColumn(), q.Descending()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var cmp int
		switch column {
		case model.SortByName:
			cmp = strings.Compare(a.Name, b.Name)
		case model.SortByStock:
			cmp = a.Stock - b.Stock
		case model.SortByPrice:
			cmp = a.Price.Cmp(b.Price)
		}
		if desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp < 0
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r *fakeRepo) Begin(ctx context.Context) (repository.ProductWriter, error) {
	return &fakeWriter{repo: r}, nil
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }

func (r *fakeRepo) Stats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return map[string]interface{}{"total_products": int64(len(r.products))}, nil
}

func (r *fakeRepo) Close() error { return nil }

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products)
}

type fakeWriter struct {
	repo *fakeRepo
	ops  []func()
	done bool
}

func (w *fakeWriter) Add(ctx context.Context, p *model.Product) error {
	w.repo.mu.Lock()
	w.repo.nextID++
	p.ID = w.repo.nextID
	w.repo.mu.Unlock()

	staged := *p
	w.ops = append(w.ops, func() { w.repo.products[staged.ID] = staged })
	return nil
}

func (w *fakeWriter) Update(ctx context.Context, p *model.Product) error {
	if _, err := w.repo.GetByID(ctx, p.ID); err != nil {
		return err
	}
	staged := *p
	w.ops = append(w.ops, func() { w.repo.products[staged.ID] = staged })
	return nil
}

func (w *fakeWriter) Delete(ctx context.Context, id int64) error {
	if _, err := w.repo.GetByID(ctx, id); err != nil {
		return err
	}
	w.ops = append(w.ops, func() { delete(w.repo.products, id) })
	return nil
}

func (w *fakeWriter) Commit() error {
	w.repo.mu.Lock()
	for _, op := range w.ops {
		op()
	}
	w.repo.mu.Unlock()
	w.done = true
	w.repo.log.add("commit")
	return nil
}

func (w *fakeWriter) Rollback() error {
	if !w.done {
		w.repo.log.add("rollback")
	}
	w.done = true
	return nil
}

var errStoreDown = errors.New("store down")

// loggingStore wraps a Store, records writes and can be made to fail.
type loggingStore struct {
	cache.Store
	log *eventLog

	mu      sync.Mutex
	failGet bool
	failSet bool
}

func (s *loggingStore) setFailures(get, set bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet, s.failSet = get, set
}

func (s *loggingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return s.Store.Get(ctx, key)
}

func (s *loggingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	fail := s.failSet
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	s.log.add("set " + key)
	return s.Store.Set(ctx, key, value, ttl)
}
