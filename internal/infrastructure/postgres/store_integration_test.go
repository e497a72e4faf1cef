package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/settlement"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/migrate"
)

// Requiere una base real: TEST_DATABASE_URL=postgres://... go test ./internal/infrastructure/postgres/
func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: url, MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	require.NoError(t, migrate.Up(ctx, db))
	return pool
}

type catalog struct {
	branch, product, client string
}

func seed(t *testing.T, pool *pgxpool.Pool) catalog {
	t.Helper()
	ctx := context.Background()
	c := catalog{branch: "b-" + uuid.NewString(), product: "p-" + uuid.NewString(), client: "c-" + uuid.NewString()}
	_, err := pool.Exec(ctx, `INSERT INTO branches (id, name) VALUES ($1, 'Centro')`, c.branch)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO products (id, name) VALUES ($1, 'Martillo')`, c.product)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO clients (id, name) VALUES ($1, 'Ana')`, c.client)
	require.NoError(t, err)
	return c
}

func TestTxRunner_LedgerRoundTrip(t *testing.T) {
	pool := openPool(t)
	c := seed(t, pool)
	ctx := context.Background()
	engine := ledger.NewEngine(postgres.NewTxRunner(pool, 2*time.Second))

	_, err := engine.Apply(ctx, []entity.LedgerEvent{
		{Kind: entity.LedgerKindReceipt, BranchID: c.branch, ProductID: c.product, Delta: decimal.NewFromInt(10), Reference: "r1"},
		{Kind: entity.LedgerKindSale, BranchID: c.branch, ProductID: c.product, Delta: decimal.NewFromInt(-4), Reference: "s1"},
	})
	require.NoError(t, err)

	_, err = engine.Apply(ctx, []entity.LedgerEvent{
		{Kind: entity.LedgerKindSale, BranchID: c.branch, ProductID: c.product, Delta: decimal.NewFromInt(-7), Reference: "s2"},
	})
	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.True(t, ise.Available.Equal(decimal.NewFromInt(6)))

	lvl, err := engine.Level(ctx, c.branch, c.product)
	require.NoError(t, err)
	assert.True(t, lvl.Quantity.Equal(decimal.NewFromInt(6)))

	disc, err := engine.Reconcile(ctx, c.branch)
	require.NoError(t, err)
	assert.Empty(t, disc)
}

func TestTxRunner_ConcurrentSales(t *testing.T) {
	pool := openPool(t)
	c := seed(t, pool)
	ctx := context.Background()
	engine := ledger.NewEngine(postgres.NewTxRunner(pool, 5*time.Second))
	_, err := engine.Apply(ctx, []entity.LedgerEvent{
		{Kind: entity.LedgerKindReceipt, BranchID: c.branch, ProductID: c.product, Delta: decimal.NewFromInt(10), Reference: "r1"},
	})
	require.NoError(t, err)

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Apply(ctx, []entity.LedgerEvent{
				{Kind: entity.LedgerKindSale, BranchID: c.branch, ProductID: c.product, Delta: decimal.NewFromInt(-1), Reference: "s"},
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
	assert.EqualValues(t, 10, ok.Load())
	assert.EqualValues(t, 5, short.Load())
}

func TestTxRunner_CreditSaleAndReturn(t *testing.T) {
	pool := openPool(t)
	c := seed(t, pool)
	ctx := context.Background()
	engine := ledger.NewEngine(postgres.NewTxRunner(pool, 2*time.Second))
	svc := settlement.NewService(engine)
	actor := entity.Actor{UserID: "emp", Role: entity.RoleAdmin}

	_, err := engine.Apply(ctx, []entity.LedgerEvent{
		{Kind: entity.LedgerKindReceipt, BranchID: c.branch, ProductID: c.product, Delta: decimal.NewFromInt(10), Reference: "r1"},
	})
	require.NoError(t, err)

	res, err := svc.Checkout(ctx, settlement.CheckoutInput{
		BranchID: c.branch, ClientID: c.client,
		Items: []settlement.CheckoutItem{{ProductID: c.product, Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(10)}},
		Cash:  decimal.NewFromInt(60), Credit: decimal.NewFromInt(40), Actor: actor,
	})
	require.NoError(t, err)

	ret, err := svc.ReturnItems(ctx, settlement.ReturnInput{
		SaleID: res.Sale.ID,
		Items:  []settlement.ReturnLine{{SaleItemID: res.Sale.Items[0].ID, Quantity: decimal.NewFromInt(5)}},
		Actor:  actor,
	})
	require.NoError(t, err)
	assert.True(t, ret.Return.CreditRelief.Equal(decimal.NewFromInt(20)))

	st, err := svc.ClientDebt(ctx, c.client)
	require.NoError(t, err)
	assert.True(t, st.Client.Debt.Equal(decimal.NewFromInt(20)))
	assert.Len(t, st.Entries, 2)

	detail, err := svc.GetSale(ctx, res.Sale.ID)
	require.NoError(t, err)
	require.Len(t, detail.Returns, 1)
	assert.Len(t, detail.Returns[0].Lines, 1)
	assert.True(t, detail.Sale.Items[0].ReturnedQuantity.Equal(decimal.NewFromInt(5)))
}
