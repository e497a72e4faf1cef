package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// LedgerEventFilter filtros para listar eventos. Campos vacíos no filtran.
type LedgerEventFilter struct {
	BranchID  string
	ProductID string
	Kind      entity.LedgerEventKind
	Reference string
	Limit     int
	Offset    int
}

// LedgerEventRepository puerto del libro de eventos (solo inserción).
type LedgerEventRepository interface {
	// Append inserta los eventos en orden y asigna Seq a cada uno.
	Append(ctx context.Context, events []entity.LedgerEvent) ([]entity.LedgerEvent, error)
	// List ordena por seq ascendente.
	List(ctx context.Context, filter LedgerEventFilter) ([]*entity.LedgerEvent, error)
	// SumByKey suma los deltas por clave; branchID vacío incluye todas las sucursales.
	SumByKey(ctx context.Context, branchID string) (map[entity.StockKey]decimal.Decimal, error)
	ExistsByReference(ctx context.Context, kind entity.LedgerEventKind, reference string) (bool, error)
}
