package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ClientRepository puerto para el saldo deudor del cliente. Solo lo muta la liquidación.
type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Client, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Client, error)
	UpdateDebt(ctx context.Context, client *entity.Client) error
}

// DebtRepository historial de cambios de deuda (solo inserción).
type DebtRepository interface {
	Append(ctx context.Context, entry *entity.DebtEntry) error
	ListByClient(ctx context.Context, clientID string) ([]*entity.DebtEntry, error)
}
