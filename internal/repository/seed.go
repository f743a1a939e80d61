package repository

import (
	"context"
	"fmt"
	"log"

	"productcatalog-api/internal/model"

	"github.com/shopspring/decimal"
)

type seedProduct struct {
	name  string
	stock int
	price string
}

var demoProducts = []seedProduct{
	{"Teclado Mecânico", 50, "299.99"},
	{"Mouse Sem Fio", 120, "89.50"},
	{"Monitor Ultrawide", 15, "1899.00"},
	{"Headset Gamer", 80, "199.90"},
	{"Webcam HD", 35, "120.00"},
}

// SeedProducts inserts the demo catalogue when the store is empty and
// reports how many products were added.
func SeedProducts(ctx context.Context, repo ProductRepository, logger *log.Logger) (int, error) {
	existing, err := repo.List(ctx, model.ListQuery{})
	if err != nil {
		return 0, fmt.Errorf("failed to check existing products: %w", err)
	}
	if len(existing) > 0 {
		logger.Printf("[Seed] Skipped, %d products already present", len(existing))
		return 0, nil
	}

	w, err := repo.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer w.Rollback()

	for _, s := range demoProducts {
		p, err := model.NewProduct(s.name, s.stock, decimal.RequireFromString(s.price))
		if err != nil {
			return 0, fmt.Errorf("invalid seed product %q: %w", s.name, err)
		}
		if err := w.Add(ctx, p); err != nil {
			return 0, fmt.Errorf("failed to seed %q: %w", s.name, err)
		}
	}

	if err := w.Commit(); err != nil {
		return 0, err
	}

	logger.Printf("[Seed] Inserted %d demo products", len(demoProducts))
	return len(demoProducts), nil
}
