package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Discrepancy clave cuya existencia no coincide con la suma de sus eventos.
type Discrepancy struct {
	Key      entity.StockKey
	Level    decimal.Decimal
	EventSum decimal.Decimal
}

// Levels existencias de una sucursal ordenadas por producto.
func (e *Engine) Levels(ctx context.Context, branchID string) ([]*entity.StockLevel, error) {
	if branchID == "" {
		return nil, domain.ErrInvalidInput
	}
	var out []*entity.StockLevel
	err := e.store.Snapshot(ctx, func(r Repositories) error {
		b, err := r.Catalog.GetBranch(ctx, branchID)
		if err != nil {
			return err
		}
		if b == nil {
			return domain.ErrBranchNotFound
		}
		out, err = r.Stock.ListByBranch(ctx, branchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

// Level existencia de una clave; cero si nunca tuvo movimientos.
func (e *Engine) Level(ctx context.Context, branchID, productID string) (*entity.StockLevel, error) {
	var out *entity.StockLevel
	err := e.store.Snapshot(ctx, func(r Repositories) error {
		var err error
		out, err = r.Stock.Get(ctx, branchID, productID)
		return err
	})
	return out, err
}

// Events lista eventos del libro por seq ascendente.
func (e *Engine) Events(ctx context.Context, filter repository.LedgerEventFilter) ([]*entity.LedgerEvent, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	var out []*entity.LedgerEvent
	err := e.store.Snapshot(ctx, func(r Repositories) error {
		var err error
		out, err = r.Events.List(ctx, filter)
		return err
	})
	return out, err
}

// Reconcile compara cada existencia con la suma de sus eventos. branchID vacío revisa todo.
// Una lista vacía significa que el libro cuadra.
func (e *Engine) Reconcile(ctx context.Context, branchID string) ([]Discrepancy, error) {
	var out []Discrepancy
	err := e.store.Snapshot(ctx, func(r Repositories) error {
		levels, err := r.Stock.ListByBranch(ctx, branchID)
		if err != nil {
			return err
		}
		sums, err := r.Events.SumByKey(ctx, branchID)
		if err != nil {
			return err
		}
		for _, lvl := range levels {
			k := lvl.Key()
			sum := sums[k]
			delete(sums, k)
			if !sum.Equal(lvl.Quantity) {
				out = append(out, Discrepancy{Key: k, Level: lvl.Quantity, EventSum: sum})
			}
		}
		for k, sum := range sums {
			out = append(out, Discrepancy{Key: k, Level: decimal.Zero, EventSum: sum})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}
