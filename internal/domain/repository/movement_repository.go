package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementFilter filtra traslados por estado y/o sucursal (origen o destino).
type MovementFilter struct {
	Status   entity.MovementStatus
	BranchID string
	Limit    int
	Offset   int
}

// MovementRepository puerto de persistencia de traslados.
// GetByID y GetForUpdate devuelven (nil, nil) si no existe.
type MovementRepository interface {
	Create(ctx context.Context, m *entity.Movement) error
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Movement, error)
	// UpdateStatus persiste estado, motivo, processed_by y processed_at.
	UpdateStatus(ctx context.Context, m *entity.Movement) error
	// List ordena por created_at descendente.
	List(ctx context.Context, filter MovementFilter) ([]*entity.Movement, error)
}
