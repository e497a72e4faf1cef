package settlement_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/settlement"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

var cashier = entity.Actor{UserID: "emp-1", BranchID: "b1", Role: entity.RoleEmployee}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	engine *ledger.Engine
	svc    *settlement.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New(2 * time.Second)
	store.AddBranch(entity.Branch{ID: "b1", Name: "Centro", Active: true})
	store.AddBranch(entity.Branch{ID: "b2", Name: "Norte", Active: true})
	store.AddProduct(entity.Product{ID: "p1", Name: "Martillo", Active: true})
	store.AddProduct(entity.Product{ID: "p2", Name: "Clavos", Active: true})
	store.AddProduct(entity.Product{ID: "p9", Name: "Descontinuado", Active: false})
	store.AddClient(entity.Client{ID: "c1", Name: "Ana", Debt: decimal.Zero})

	engine := ledger.NewEngine(store)
	f := &fixture{engine: engine, svc: settlement.NewService(engine, settlement.WithAmountEpsilon(d("0.01")))}
	_, err := engine.Apply(context.Background(), []entity.LedgerEvent{
		{Kind: entity.LedgerKindReceipt, BranchID: "b1", ProductID: "p1", Delta: d("10"), Reference: "seed"},
		{Kind: entity.LedgerKindReceipt, BranchID: "b1", ProductID: "p2", Delta: d("100"), Reference: "seed"},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) level(t *testing.T, branch, product string) decimal.Decimal {
	t.Helper()
	lvl, err := f.engine.Level(context.Background(), branch, product)
	require.NoError(t, err)
	return lvl.Quantity
}

func (f *fixture) debt(t *testing.T, clientID string) decimal.Decimal {
	t.Helper()
	st, err := f.svc.ClientDebt(context.Background(), clientID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, e := range st.Entries {
		sum = sum.Add(e.Amount)
	}
	assert.True(t, sum.Equal(st.Client.Debt), "historial %s != deuda %s", sum, st.Client.Debt)
	return st.Client.Debt
}

// creditSale vende 10 x p2 a 10 = 100, con 60 en efectivo y 40 a crédito.
func (f *fixture) creditSale(t *testing.T) *entity.Sale {
	t.Helper()
	res, err := f.svc.Checkout(context.Background(), settlement.CheckoutInput{
		BranchID: "b1", ClientID: "c1",
		Items: []settlement.CheckoutItem{{ProductID: "p2", Quantity: d("10"), UnitPrice: d("10")}},
		Cash:  d("60"), Credit: d("40"),
		Actor: cashier,
	})
	require.NoError(t, err)
	return res.Sale
}

func TestCheckout_ExactPayment(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Checkout(context.Background(), settlement.CheckoutInput{
		BranchID: "b1",
		Items:    []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("4"), UnitPrice: d("10")}},
		Cash:     d("40"),
		Actor:    cashier,
	})
	require.NoError(t, err)
	assert.True(t, res.Sale.Total.Equal(d("40")))
	assert.Equal(t, "emp-1", res.Sale.EmployeeID)
	require.Len(t, res.Levels, 1)
	assert.True(t, res.Levels[0].Quantity.Equal(d("6")))
	assert.True(t, f.level(t, "b1", "p1").Equal(d("6")))
}

func TestCheckout_AmountMismatchLeavesStock(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), settlement.CheckoutInput{
		BranchID: "b1",
		Items:    []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("4"), UnitPrice: d("10")}},
		Cash:     d("30"),
		Actor:    cashier,
	})
	var ame *domain.AmountMismatchError
	require.ErrorAs(t, err, &ame)
	assert.ErrorIs(t, err, domain.ErrAmountMismatch)
	assert.True(t, ame.Total.Equal(d("40")))
	assert.True(t, ame.Paid.Equal(d("30")))
	assert.True(t, f.level(t, "b1", "p1").Equal(d("10")))
}

func TestCheckout_RoundingTolerance(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Checkout(context.Background(), settlement.CheckoutInput{
		BranchID: "b1",
		Items:    []settlement.CheckoutItem{{ProductID: "p2", Quantity: d("3.3333"), UnitPrice: d("3")}},
		Cash:     d("9.99"),
		Actor:    cashier,
	})
	require.NoError(t, err, "9.99 contra 10.00 está dentro de 0.01")
	assert.True(t, res.Sale.Total.Equal(d("10")), "total %s redondeado a centavos", res.Sale.Total)
}

func TestCheckout_Validation(t *testing.T) {
	f := newFixture(t)
	one := []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("1"), UnitPrice: d("10")}}
	cases := []struct {
		name string
		in   settlement.CheckoutInput
		want error
	}{
		{"sin items", settlement.CheckoutInput{BranchID: "b1", Actor: cashier}, domain.ErrEmptyItems},
		{"cantidad cero", settlement.CheckoutInput{BranchID: "b1", Items: []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("0"), UnitPrice: d("1")}}, Actor: cashier}, domain.ErrInvalidQuantity},
		{"precio negativo", settlement.CheckoutInput{BranchID: "b1", Items: []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("1"), UnitPrice: d("-1")}}, Actor: cashier}, domain.ErrInvalidInput},
		{"cantidad con cinco decimales", settlement.CheckoutInput{BranchID: "b1", Items: []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("0.00004"), UnitPrice: d("1")}}, Actor: cashier}, domain.ErrInvalidQuantity},
		{"precio con tres decimales", settlement.CheckoutInput{BranchID: "b1", Items: []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("3"), UnitPrice: d("0.333")}}, Cash: d("1"), Actor: cashier}, domain.ErrInvalidInput},
		{"efectivo con tres decimales", settlement.CheckoutInput{BranchID: "b1", Items: one, Cash: d("9.999"), Card: d("0.001"), Actor: cashier}, domain.ErrInvalidInput},
		{"producto inactivo", settlement.CheckoutInput{BranchID: "b1", Items: []settlement.CheckoutItem{{ProductID: "p9", Quantity: d("1"), UnitPrice: d("1")}}, Cash: d("1"), Actor: cashier}, domain.ErrProductInactive},
		{"crédito sin cliente", settlement.CheckoutInput{BranchID: "b1", Items: one, Credit: d("10"), Actor: cashier}, domain.ErrClientRequired},
		{"cliente inexistente", settlement.CheckoutInput{BranchID: "b1", ClientID: "cx", Items: one, Credit: d("10"), Actor: cashier}, domain.ErrClientNotFound},
		{"otra sucursal", settlement.CheckoutInput{BranchID: "b2", Items: one, Cash: d("10"), Actor: cashier}, domain.ErrForbidden},
		{"stock insuficiente", settlement.CheckoutInput{BranchID: "b1", Items: []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("11"), UnitPrice: d("1")}}, Cash: d("11"), Actor: cashier}, domain.ErrInsufficientStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Checkout(context.Background(), tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.True(t, f.level(t, "b1", "p1").Equal(d("10")))
	assert.True(t, f.debt(t, "c1").IsZero())
}

func TestCheckout_CreditIncreasesDebt(t *testing.T) {
	f := newFixture(t)
	sale := f.creditSale(t)

	assert.True(t, f.debt(t, "c1").Equal(d("40")))
	st, err := f.svc.ClientDebt(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, entity.DebtKindSaleCredit, st.Entries[0].Kind)
	assert.Equal(t, sale.ID, st.Entries[0].SaleID)
}

func TestReturnItems_ProportionalRelief(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sale := f.creditSale(t)

	res, err := f.svc.ReturnItems(ctx, settlement.ReturnInput{
		SaleID: sale.ID,
		Items:  []settlement.ReturnLine{{SaleItemID: sale.Items[0].ID, Quantity: d("5")}},
		Actor:  cashier,
	})
	require.NoError(t, err)
	assert.True(t, res.Return.Amount.Equal(d("50")))
	assert.True(t, res.Return.CreditRelief.Equal(d("20")))
	require.NotNil(t, res.Debt)
	assert.True(t, res.Debt.Equal(d("20")))

	assert.True(t, f.debt(t, "c1").Equal(d("20")))
	assert.True(t, f.level(t, "b1", "p2").Equal(d("95")))

	detail, err := f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, detail.Sale.Items[0].ReturnedQuantity.Equal(d("5")))
	require.Len(t, detail.Returns, 1)

	disc, err := f.engine.Reconcile(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, disc)
}

func TestReturnItems_CumulativeOverReturn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sale := f.creditSale(t)
	line := sale.Items[0].ID

	_, err := f.svc.ReturnItems(ctx, settlement.ReturnInput{SaleID: sale.ID, Items: []settlement.ReturnLine{{SaleItemID: line, Quantity: d("6")}}, Actor: cashier})
	require.NoError(t, err)

	_, err = f.svc.ReturnItems(ctx, settlement.ReturnInput{SaleID: sale.ID, Items: []settlement.ReturnLine{{SaleItemID: line, Quantity: d("5")}}, Actor: cashier})
	var ore *domain.OverReturnError
	require.ErrorAs(t, err, &ore)
	assert.ErrorIs(t, err, domain.ErrOverReturn)
	assert.Equal(t, line, ore.LineID)
	assert.True(t, ore.Remaining.Equal(d("4")))

	// líneas repetidas en un mismo pedido se acumulan
	_, err = f.svc.ReturnItems(ctx, settlement.ReturnInput{SaleID: sale.ID, Items: []settlement.ReturnLine{
		{SaleItemID: line, Quantity: d("3")}, {SaleItemID: line, Quantity: d("2")},
	}, Actor: cashier})
	assert.ErrorIs(t, err, domain.ErrOverReturn)

	assert.True(t, f.level(t, "b1", "p2").Equal(d("96")), "solo la primera devolución repone stock")
	assert.True(t, f.debt(t, "c1").Equal(d("16")))
}

func TestReturnItems_ReliefClampedToDebt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sale := f.creditSale(t)

	_, err := f.svc.PayDebt(ctx, settlement.PayDebtInput{ClientID: "c1", Amount: d("30"), Actor: cashier})
	require.NoError(t, err)

	res, err := f.svc.ReturnItems(ctx, settlement.ReturnInput{
		SaleID: sale.ID,
		Items:  []settlement.ReturnLine{{SaleItemID: sale.Items[0].ID, Quantity: d("5")}},
		Actor:  cashier,
	})
	require.NoError(t, err)
	assert.True(t, res.Return.CreditRelief.Equal(d("10")))
	assert.True(t, f.debt(t, "c1").IsZero())
}

func TestReturnItems_CashSaleHasNoRelief(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, err := f.svc.Checkout(ctx, settlement.CheckoutInput{
		BranchID: "b1", Items: []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("2"), UnitPrice: d("5")}},
		Cash: d("10"), Actor: cashier,
	})
	require.NoError(t, err)

	ret, err := f.svc.ReturnItems(ctx, settlement.ReturnInput{
		SaleID: res.Sale.ID, Items: []settlement.ReturnLine{{SaleItemID: res.Sale.Items[0].ID, Quantity: d("2")}}, Actor: cashier,
	})
	require.NoError(t, err)
	assert.True(t, ret.Return.CreditRelief.IsZero())
	assert.Nil(t, ret.Debt)
	assert.True(t, f.level(t, "b1", "p1").Equal(d("10")))

	events, err := f.engine.Events(ctx, repository.LedgerEventFilter{Reference: res.Sale.ID, Kind: entity.LedgerKindReturn})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestReturnItems_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sale := f.creditSale(t)

	_, err := f.svc.ReturnItems(ctx, settlement.ReturnInput{SaleID: "nope", Items: []settlement.ReturnLine{{SaleItemID: "x", Quantity: d("1")}}, Actor: cashier})
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)

	_, err = f.svc.ReturnItems(ctx, settlement.ReturnInput{SaleID: sale.ID, Items: []settlement.ReturnLine{{SaleItemID: "otra", Quantity: d("1")}}, Actor: cashier})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.ReturnItems(ctx, settlement.ReturnInput{SaleID: sale.ID, Actor: cashier})
	assert.ErrorIs(t, err, domain.ErrEmptyItems)

	other := entity.Actor{UserID: "emp-2", BranchID: "b2", Role: entity.RoleEmployee}
	_, err = f.svc.ReturnItems(ctx, settlement.ReturnInput{SaleID: sale.ID, Items: []settlement.ReturnLine{{SaleItemID: sale.Items[0].ID, Quantity: d("1")}}, Actor: other})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.True(t, f.debt(t, "c1").Equal(d("40")))
}

func TestCheckout_ConcurrentExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Checkout(ctx, settlement.CheckoutInput{
				BranchID: "b1",
				Items:    []settlement.CheckoutItem{{ProductID: "p1", Quantity: d("6"), UnitPrice: d("1")}},
				Cash:     d("6"),
				Actor:    cashier,
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				short.Add(1)
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, 1, short.Load())
	assert.True(t, f.level(t, "b1", "p1").Equal(d("4")))
}

func TestPayDebt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.creditSale(t)

	_, err := f.svc.PayDebt(ctx, settlement.PayDebtInput{ClientID: "c1", Amount: d("41"), Actor: cashier})
	assert.ErrorIs(t, err, domain.ErrOverpayment)

	_, err = f.svc.PayDebt(ctx, settlement.PayDebtInput{ClientID: "c1", Amount: d("0"), Actor: cashier})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.PayDebt(ctx, settlement.PayDebtInput{ClientID: "c1", Amount: d("0.001"), Actor: cashier})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.PayDebt(ctx, settlement.PayDebtInput{ClientID: "cx", Amount: d("1"), Actor: cashier})
	assert.ErrorIs(t, err, domain.ErrClientNotFound)

	c, err := f.svc.PayDebt(ctx, settlement.PayDebtInput{ClientID: "c1", Amount: d("15.50"), Actor: cashier})
	require.NoError(t, err)
	assert.True(t, c.Debt.Equal(d("24.50")))
	assert.True(t, f.debt(t, "c1").Equal(d("24.50")))
}

func TestGetSale_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetSale(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)
	_, err = f.svc.ClientDebt(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrClientNotFound)
}

func TestCreditRelief(t *testing.T) {
	cases := []struct {
		amount, credit, total, debt, want string
	}{
		{"50", "40", "100", "40", "20"},
		{"50", "40", "100", "5", "5"},
		{"50", "0", "100", "40", "0"},
		{"10", "10", "30", "100", "3.33"},
		{"0", "40", "100", "40", "0"},
	}
	for _, tc := range cases {
		got := settlement.CreditRelief(d(tc.amount), d(tc.credit), d(tc.total), d(tc.debt))
		assert.True(t, got.Equal(d(tc.want)), "%+v -> %s", tc, got)
	}
}
