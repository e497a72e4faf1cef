package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// SaleRepository puerto de persistencia de ventas y devoluciones.
type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Sale, error)
	// UpdateReturnedQuantities persiste ReturnedQuantity de cada línea.
	UpdateReturnedQuantities(ctx context.Context, sale *entity.Sale) error
	CreateReturn(ctx context.Context, ret *entity.SaleReturn) error
	ListReturns(ctx context.Context, saleID string) ([]*entity.SaleReturn, error)
}
