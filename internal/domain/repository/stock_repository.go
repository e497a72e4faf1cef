package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockRepository define el puerto para consultar/actualizar stock por sucursal+producto.
// Usado dentro de transacciones para garantizar consistencia.
type StockRepository interface {
	// Get devuelve la existencia; si la fila no existe devuelve cantidad cero.
	Get(ctx context.Context, branchID, productID string) (*entity.StockLevel, error)
	// GetForUpdate bloquea la fila (creándola en cero si hace falta) hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, branchID, productID string) (*entity.StockLevel, error)
	Upsert(ctx context.Context, level *entity.StockLevel) error
	// ListByBranch con branchID vacío devuelve todas las filas.
	ListByBranch(ctx context.Context, branchID string) ([]*entity.StockLevel, error)
}
