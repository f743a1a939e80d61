package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"productcatalog-api/internal/cache"
	"productcatalog-api/internal/model"
	"productcatalog-api/internal/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ProductCacheNamespace prefixes every product cache key.
const ProductCacheNamespace = "products"

// ProductService handles product business logic. Listings are served
// cache-aside; every committed write starts a new cache generation.
type ProductService struct {
	repo  repository.ProductRepository
	lists *cache.ListCache[model.ProductView]
}

// NewProductService creates a new product service.
func NewProductService(repo repository.ProductRepository, lists *cache.ListCache[model.ProductView]) *ProductService {
	return &ProductService{repo: repo, lists: lists}
}

// IsValidationError reports whether err was caused by invalid input,
// either caught by payload validation or by the entity itself.
func IsValidationError(err error) bool {
	var verrs validation.Errors
	return errors.As(err, &verrs) ||
		errors.Is(err, model.ErrNegativePrice) ||
		errors.Is(err, model.ErrNegativeStock)
}

// List returns product views matching q.
func (s *ProductService) List(ctx context.Context, q model.ListQuery) ([]model.ProductView, error) {
	params := cache.ListParams{Search: q.Search, SortBy: q.SortBy, Direction: q.Direction}

	return s.lists.List(ctx, params, func(ctx context.Context) ([]model.ProductView, error) {
		products, err := s.repo.List(ctx, q)
		if err != nil {
			return nil, err
		}
		views := make([]model.ProductView, len(products))
		for i := range products {
			views[i] = products[i].ToView()
		}
		return views, nil
	})
}

// GetByID returns a single product. Lookups by id are not cached.
func (s *ProductService) GetByID(ctx context.Context, id int64) (model.ProductView, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return model.ProductView{}, err
	}
	return p.ToView(), nil
}

// Create validates and stores a new product.
func (s *ProductService) Create(ctx context.Context, in model.ProductInput) (model.ProductView, error) {
	if err := in.Validate(); err != nil {
		return model.ProductView{}, err
	}

	p, err := model.NewProduct(in.Name, in.Stock, in.Price)
	if err != nil {
		return model.ProductView{}, err
	}

	err = s.write(ctx, func(w repository.ProductWriter) error {
		return w.Add(ctx, p)
	})
	if err != nil {
		return model.ProductView{}, err
	}

	log.Printf("[ProductService] Created product %d", p.ID)
	return p.ToView(), nil
}

// Update replaces name, stock and price of product id.
func (s *ProductService) Update(ctx context.Context, id int64, in model.ProductInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	p := &model.Product{ID: id}
	if err := p.Apply(in); err != nil {
		return err
	}

	if err := s.write(ctx, func(w repository.ProductWriter) error {
		return w.Update(ctx, p)
	}); err != nil {
		return err
	}

	log.Printf("[ProductService] Updated product %d", id)
	return nil
}

// Delete removes product id.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := s.write(ctx, func(w repository.ProductWriter) error {
		return w.Delete(ctx, id)
	}); err != nil {
		return err
	}

	log.Printf("[ProductService] Deleted product %d", id)
	return nil
}

// write runs stage inside a unit of work, commits, then bumps the list
// cache version. A failed stage rolls back and leaves the cache alone.
func (s *ProductService) write(ctx context.Context, stage func(w repository.ProductWriter) error) error {
	w, err := s.repo.Begin(ctx)
	if err != nil {
		return err
	}
	defer w.Rollback()

	if err := stage(w); err != nil {
		return err
	}
	if err := w.Commit(); err != nil {
		return err
	}

	if _, err := s.lists.BumpVersion(ctx); err != nil {
		// The write is durable; lists cached under the old version stay
		// reachable until their TTL runs out.
		log.Printf("[ProductService] Version bump failed after commit: %v", err)
		return fmt.Errorf("write committed but cache invalidation failed: %w", err)
	}
	return nil
}

// Seed inserts the demo catalogue into an empty store. Inserted rows
// start a new cache generation like any other committed write.
func (s *ProductService) Seed(ctx context.Context) (int, error) {
	n, err := repository.SeedProducts(ctx, s.repo, log.Default())
	if err != nil || n == 0 {
		return n, err
	}

	if _, err := s.lists.BumpVersion(ctx); err != nil {
		log.Printf("[ProductService] Version bump failed after seeding: %v", err)
		return n, fmt.Errorf("seed committed but cache invalidation failed: %w", err)
	}
	return n, nil
}

// InvalidateCache starts a new list cache generation without a write.
func (s *ProductService) InvalidateCache(ctx context.Context) (string, error) {
	return s.lists.BumpVersion(ctx)
}

// ResetCache removes the version token; the next read mints a new one.
func (s *ProductService) ResetCache(ctx context.Context) error {
	return s.lists.Reset(ctx)
}

// Stats returns repository statistics together with cache state.
func (s *ProductService) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	version, ok, err := s.lists.Version(ctx)
	if err != nil {
		stats["cache_error"] = err.Error()
	} else if ok {
		stats["cache_version"] = version
	}
	stats["cache_ttl_seconds"] = int(s.lists.TTL().Seconds())
	return stats, nil
}
