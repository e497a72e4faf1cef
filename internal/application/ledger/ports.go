package ledger

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Repositories repositorios atados a una misma transacción (o a una misma lectura consistente).
type Repositories struct {
	Stock     repository.StockRepository
	Events    repository.LedgerEventRepository
	Movements repository.MovementRepository
	Sales     repository.SaleRepository
	Clients   repository.ClientRepository
	Debts     repository.DebtRepository
	Receipts  repository.ReceiptRepository
	Catalog   repository.CatalogRepository
}

// Store ejecuta funciones dentro de una transacción de almacenamiento.
// Run confirma si fn devuelve nil y deshace en otro caso; los bloqueos tomados con
// GetForUpdate se liberan al terminar. Snapshot da una vista de solo lectura consistente.
type Store interface {
	Run(ctx context.Context, fn func(repos Repositories) error) error
	Snapshot(ctx context.Context, fn func(repos Repositories) error) error
}

// EventPublisher recibe los eventos ya confirmados. Un fallo no afecta al commit.
type EventPublisher interface {
	Publish(ctx context.Context, events []entity.LedgerEvent) error
}
