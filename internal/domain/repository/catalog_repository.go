package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// CatalogRepository lectura de sucursales y productos (el catálogo se mantiene fuera del libro).
type CatalogRepository interface {
	GetBranch(ctx context.Context, id string) (*entity.Branch, error)
	GetProduct(ctx context.Context, id string) (*entity.Product, error)
}
