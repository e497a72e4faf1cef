package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene la existencia de un producto en una sucursal.
func (r *StockRepo) Get(ctx context.Context, branchID, productID string) (*entity.StockLevel, error) {
	query := `
		SELECT branch_id, product_id, quantity, updated_at
		FROM stock_levels WHERE branch_id = $1 AND product_id = $2`
	var s entity.StockLevel
	err := r.q.QueryRow(ctx, query, branchID, productID).Scan(&s.BranchID, &s.ProductID, &s.Quantity, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.StockLevel{BranchID: branchID, ProductID: productID, Quantity: decimal.Zero}, nil
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &s, nil
}

// GetForUpdate crea la fila en cero si no existe y la bloquea (SELECT FOR UPDATE).
func (r *StockRepo) GetForUpdate(ctx context.Context, branchID, productID string) (*entity.StockLevel, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_levels (branch_id, product_id, quantity, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (branch_id, product_id) DO NOTHING`, branchID, productID)
	if err != nil {
		return nil, fmt.Errorf("ensure stock row: %w", err)
	}
	query := `
		SELECT branch_id, product_id, quantity, updated_at
		FROM stock_levels WHERE branch_id = $1 AND product_id = $2
		FOR UPDATE`
	var s entity.StockLevel
	if err := r.q.QueryRow(ctx, query, branchID, productID).Scan(&s.BranchID, &s.ProductID, &s.Quantity, &s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get stock for update: %w", err)
	}
	return &s, nil
}

// Upsert inserta o actualiza la cantidad (por sucursal y producto).
func (r *StockRepo) Upsert(ctx context.Context, level *entity.StockLevel) error {
	query := `
		INSERT INTO stock_levels (branch_id, product_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (branch_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, level.BranchID, level.ProductID, level.Quantity, level.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}
	return nil
}

// ListByBranch existencias de una sucursal ordenadas por producto; "" lista todas.
func (r *StockRepo) ListByBranch(ctx context.Context, branchID string) ([]*entity.StockLevel, error) {
	query := `
		SELECT branch_id, product_id, quantity, updated_at
		FROM stock_levels WHERE ($1 = '' OR branch_id = $1)
		ORDER BY branch_id, product_id`
	rows, err := r.q.Query(ctx, query, branchID)
	if err != nil {
		return nil, fmt.Errorf("list stock: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockLevel
	for rows.Next() {
		var s entity.StockLevel
		if err := rows.Scan(&s.BranchID, &s.ProductID, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
