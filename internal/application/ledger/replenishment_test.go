package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func TestReplenishment(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, time.Second)
	s.AddProduct(entity.Product{ID: "r1", Name: "Clavo", Unit: "kg", ReorderLimit: decimal.NewFromInt(10), Active: true})
	s.AddProduct(entity.Product{ID: "r2", Name: "Brocha", Unit: "pcs", ReorderLimit: decimal.NewFromInt(4), Active: true})
	s.AddProduct(entity.Product{ID: "r3", Name: "Lija", Unit: "pcs", ReorderLimit: decimal.NewFromInt(5), Active: true})
	e := ledger.NewEngine(s)

	_, err := e.Apply(ctx, []entity.LedgerEvent{
		ev(entity.LedgerKindReceipt, "b1", "r1", "2"),
		ev(entity.LedgerKindReceipt, "b1", "r2", "4"),
		ev(entity.LedgerKindReceipt, "b1", "r3", "9"),
		ev(entity.LedgerKindReceipt, "b1", "p1", "1"), // sin límite
	})
	require.NoError(t, err)

	items, err := e.Replenishment(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "r1", items[0].ProductID)
	assert.Equal(t, 1, items[0].Priority)
	assert.True(t, items[0].IdealStock.Equal(d("15")))
	assert.True(t, items[0].SuggestedQty.Equal(d("13")))

	assert.Equal(t, "r2", items[1].ProductID)
	assert.Equal(t, 2, items[1].Priority)
	assert.True(t, items[1].SuggestedQty.Equal(d("2")))

	items, err = e.Replenishment(ctx, "b2")
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = e.Replenishment(ctx, "zz")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.Replenishment(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
