package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
)

var _ ledger.Store = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTxRunner construye el runner con el pool. lockTimeout acota la espera por
// cada bloqueo de fila; al vencer el comando falla con ErrBusy.
func NewTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) *TxRunner {
	return &TxRunner{pool: pool, lockTimeout: lockTimeout}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(ledger.Repositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if r.lockTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, lockTimeoutSetting(r.lockTimeout)); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}

	if err := fn(Repositories(tx)); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Snapshot lectura consistente en una transacción REPEATABLE READ de solo lectura.
func (r *TxRunner) Snapshot(ctx context.Context, fn func(ledger.Repositories) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(Repositories(tx)); err != nil {
		return mapError(err)
	}
	return tx.Commit(ctx)
}

// Repositories arma los repositorios sobre un Querier (pool o tx).
func Repositories(q Querier) ledger.Repositories {
	return ledger.Repositories{
		Stock:     NewStockRepository(q),
		Events:    NewLedgerEventRepository(q),
		Movements: NewMovementRepository(q),
		Sales:     NewSaleRepository(q),
		Clients:   NewClientRepository(q),
		Debts:     NewDebtRepository(q),
		Receipts:  NewReceiptRepository(q),
		Catalog:   NewCatalogRepository(q),
	}
}

// lockTimeoutSetting formato aceptado por SET lock_timeout (milisegundos, mínimo 1).
func lockTimeoutSetting(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}
