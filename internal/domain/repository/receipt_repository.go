package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ReceiptRepository puerto de persistencia de ingresos de mercadería.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.Receipt) error
	GetByID(ctx context.Context, id string) (*entity.Receipt, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Receipt, error)
	MarkCancelled(ctx context.Context, receipt *entity.Receipt) error
	ListByBranch(ctx context.Context, branchID string, limit, offset int) ([]*entity.Receipt, error)
}
