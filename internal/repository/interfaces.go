package repository

import (
	"context"

	"productcatalog-api/internal/model"
)

// ProductRepository defines product data access methods.
type ProductRepository interface {
	// GetByID returns model.ErrProductNotFound when no row matches.
	GetByID(ctx context.Context, id int64) (*model.Product, error)

	// List filters by case-sensitive name substring and orders by the
	// query's sort column, with the identifier as secondary key.
	List(ctx context.Context, q model.ListQuery) ([]model.Product, error)

	// Begin opens a unit of work. Nothing it writes is visible to other
	// readers until Commit returns.
	Begin(ctx context.Context) (ProductWriter, error)

	// Ping checks connectivity to the backing database.
	Ping(ctx context.Context) error

	// Stats returns statistics about the product store.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}

// ProductWriter stages product mutations.
type ProductWriter interface {
	// Add inserts p and sets p.ID.
	Add(ctx context.Context, p *model.Product) error

	// Update overwrites name, stock and price of the row with p.ID.
	Update(ctx context.Context, p *model.Product) error

	// Delete removes the row with id.
	Delete(ctx context.Context, id int64) error

	Commit() error

	// Rollback discards staged writes. Calling it after Commit is a no-op.
	Rollback() error
}
