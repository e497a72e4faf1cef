package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// idealStockFactor múltiplo del límite de reposición al que se busca volver.
var idealStockFactor = decimal.NewFromFloat(1.5)

// ReplenishmentItem producto de una sucursal en o bajo su límite de reposición.
type ReplenishmentItem struct {
	ProductID    string
	ProductName  string
	Unit         string
	Current      decimal.Decimal
	ReorderLimit decimal.Decimal
	IdealStock   decimal.Decimal
	SuggestedQty decimal.Decimal
	Priority     int // 1 = más urgente
}

// Replenishment lista de reposición de una sucursal. Solo considera productos con fila de
// existencias y límite de reposición positivo. Orden: mayor déficit relativo primero.
func (e *Engine) Replenishment(ctx context.Context, branchID string) ([]ReplenishmentItem, error) {
	if branchID == "" {
		return nil, domain.ErrInvalidInput
	}
	var out []ReplenishmentItem
	err := e.store.Snapshot(ctx, func(r Repositories) error {
		b, err := r.Catalog.GetBranch(ctx, branchID)
		if err != nil {
			return err
		}
		if b == nil {
			return domain.ErrBranchNotFound
		}
		levels, err := r.Stock.ListByBranch(ctx, branchID)
		if err != nil {
			return err
		}
		for _, lvl := range levels {
			p, err := r.Catalog.GetProduct(ctx, lvl.ProductID)
			if err != nil {
				return err
			}
			if p == nil || !p.Active || !p.ReorderLimit.IsPositive() {
				continue
			}
			if lvl.Quantity.GreaterThan(p.ReorderLimit) {
				continue
			}
			ideal := p.ReorderLimit.Mul(idealStockFactor)
			out = append(out, ReplenishmentItem{
				ProductID:    p.ID,
				ProductName:  p.Name,
				Unit:         p.Unit,
				Current:      lvl.Quantity,
				ReorderLimit: p.ReorderLimit,
				IdealStock:   ideal,
				SuggestedQty: decimal.Max(ideal.Sub(lvl.Quantity), decimal.Zero),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := deficitRatio(out[i]), deficitRatio(out[j])
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return out[i].ProductID < out[j].ProductID
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out, nil
}

// deficitRatio fracción del límite que falta: 1 con stock en cero, 0 justo en el límite.
func deficitRatio(it ReplenishmentItem) decimal.Decimal {
	return it.ReorderLimit.Sub(it.Current).Div(it.ReorderLimit)
}
