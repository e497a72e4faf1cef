package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

// SaleRepo ventas y devoluciones sobre PostgreSQL.
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

const saleColumns = `id, branch_id, employee_id, client_id, cash, card, credit, total, created_at`

// Create persiste la venta con sus líneas.
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.BranchID, s.EmployeeID, nullable(s.ClientID), s.Cash, s.Card, s.Credit, s.Total, s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return mapError(err)
		}
		return fmt.Errorf("create sale: %w", err)
	}
	batch := &pgx.Batch{}
	for i, it := range s.Items {
		batch.Queue(`
			INSERT INTO sale_items (id, sale_id, position, product_id, quantity, unit_price, returned_quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			it.ID, s.ID, i, it.ProductID, it.Quantity, it.UnitPrice, it.ReturnedQuantity)
	}
	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("create sale items: %w", err)
	}
	return nil
}

// GetByID obtiene una venta con sus líneas. (nil, nil) si no existe.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	return r.get(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

// GetForUpdate bloquea la venta: las devoluciones concurrentes se serializan aquí.
func (r *SaleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	return r.get(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
}

func (r *SaleRepo) get(ctx context.Context, query, id string) (*entity.Sale, error) {
	var s entity.Sale
	var clientID *string
	err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.BranchID, &s.EmployeeID, &clientID, &s.Cash, &s.Card, &s.Credit, &s.Total, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	s.ClientID = deref(clientID)

	rows, err := r.q.Query(ctx, `
		SELECT id, product_id, quantity, unit_price, returned_quantity
		FROM sale_items WHERE sale_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get sale items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.ReturnedQuantity); err != nil {
			return nil, err
		}
		s.Items = append(s.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateReturnedQuantities persiste lo devuelto por línea.
func (r *SaleRepo) UpdateReturnedQuantities(ctx context.Context, s *entity.Sale) error {
	batch := &pgx.Batch{}
	for _, it := range s.Items {
		batch.Queue(`UPDATE sale_items SET returned_quantity = $3 WHERE sale_id = $1 AND id = $2`,
			s.ID, it.ID, it.ReturnedQuantity)
	}
	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("update returned quantities: %w", err)
	}
	return nil
}

// CreateReturn persiste una devolución con sus líneas.
func (r *SaleRepo) CreateReturn(ctx context.Context, ret *entity.SaleReturn) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO sale_returns (id, sale_id, amount, credit_relief, processed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ret.ID, ret.SaleID, ret.Amount, ret.CreditRelief, ret.ProcessedBy, ret.CreatedAt)
	for _, l := range ret.Lines {
		batch.Queue(`
			INSERT INTO sale_return_lines (return_id, sale_item_id, product_id, quantity, amount)
			VALUES ($1, $2, $3, $4, $5)`,
			ret.ID, l.SaleItemID, l.ProductID, l.Quantity, l.Amount)
	}
	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("create sale return: %w", err)
	}
	return nil
}

// ListReturns devoluciones de una venta en orden cronológico.
func (r *SaleRepo) ListReturns(ctx context.Context, saleID string) ([]*entity.SaleReturn, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, sale_id, amount, credit_relief, processed_by, created_at
		FROM sale_returns WHERE sale_id = $1 ORDER BY created_at, id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale returns: %w", err)
	}
	var list []*entity.SaleReturn
	byID := map[string]*entity.SaleReturn{}
	for rows.Next() {
		var ret entity.SaleReturn
		if err := rows.Scan(&ret.ID, &ret.SaleID, &ret.Amount, &ret.CreditRelief, &ret.ProcessedBy, &ret.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, &ret)
		byID[ret.ID] = &ret
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	lines, err := r.q.Query(ctx, `
		SELECT l.return_id, l.sale_item_id, l.product_id, l.quantity, l.amount
		FROM sale_return_lines l JOIN sale_returns r ON r.id = l.return_id
		WHERE r.sale_id = $1 ORDER BY l.return_id, l.sale_item_id`, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale return lines: %w", err)
	}
	defer lines.Close()
	for lines.Next() {
		var returnID string
		var l entity.SaleReturnLine
		if err := lines.Scan(&returnID, &l.SaleItemID, &l.ProductID, &l.Quantity, &l.Amount); err != nil {
			return nil, err
		}
		if ret, ok := byID[returnID]; ok {
			ret.Lines = append(ret.Lines, l)
		}
	}
	return list, lines.Err()
}
