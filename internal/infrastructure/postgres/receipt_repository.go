package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ReceiptRepository = (*ReceiptRepo)(nil)

// ReceiptRepo ingresos de mercadería sobre PostgreSQL.
type ReceiptRepo struct {
	q Querier
}

// NewReceiptRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReceiptRepository(q Querier) *ReceiptRepo {
	return &ReceiptRepo{q: q}
}

const receiptColumns = `id, branch_id, comment, created_by, created_at, cancelled_by, cancelled_at`

// Create persiste el ingreso y sus líneas.
func (r *ReceiptRepo) Create(ctx context.Context, rc *entity.Receipt) error {
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO receipts (`+receiptColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rc.ID, rc.BranchID, rc.Comment, rc.CreatedBy, rc.CreatedAt, rc.CancelledBy, rc.CancelledAt)
	for i, it := range rc.Items {
		batch.Queue(`
			INSERT INTO receipt_items (receipt_id, position, product_id, quantity, purchase_price, sale_price)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			rc.ID, i, it.ProductID, it.Quantity, it.PurchasePrice, it.SalePrice)
	}
	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		if isUniqueViolation(err) {
			return mapError(err)
		}
		return fmt.Errorf("create receipt: %w", err)
	}
	return nil
}

// GetByID obtiene un ingreso por ID. (nil, nil) si no existe.
func (r *ReceiptRepo) GetByID(ctx context.Context, id string) (*entity.Receipt, error) {
	return r.get(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id)
}

// GetForUpdate bloquea el ingreso (anulaciones concurrentes).
func (r *ReceiptRepo) GetForUpdate(ctx context.Context, id string) (*entity.Receipt, error) {
	return r.get(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReceiptRepo) get(ctx context.Context, query, id string) (*entity.Receipt, error) {
	rc, err := scanReceipt(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.Receipt{rc}); err != nil {
		return nil, err
	}
	return rc, nil
}

// MarkCancelled registra la anulación.
func (r *ReceiptRepo) MarkCancelled(ctx context.Context, rc *entity.Receipt) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE receipts SET cancelled_by = $2, cancelled_at = $3
		WHERE id = $1 AND cancelled_at IS NULL`, rc.ID, rc.CancelledBy, rc.CancelledAt)
	if err != nil {
		return fmt.Errorf("cancel receipt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel receipt %s: fila inexistente o ya anulada", rc.ID)
	}
	return nil
}

// ListByBranch ingresos de la sucursal, más recientes primero.
func (r *ReceiptRepo) ListByBranch(ctx context.Context, branchID string, limit, offset int) ([]*entity.Receipt, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+receiptColumns+` FROM receipts
		WHERE ($1 = '' OR branch_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, branchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	var list []*entity.Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, rc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *ReceiptRepo) loadItems(ctx context.Context, list []*entity.Receipt) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Receipt, len(list))
	ids := make([]string, 0, len(list))
	for _, rc := range list {
		byID[rc.ID] = rc
		ids = append(ids, rc.ID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT receipt_id, product_id, quantity, purchase_price, sale_price
		FROM receipt_items WHERE receipt_id = ANY($1) ORDER BY receipt_id, position`, ids)
	if err != nil {
		return fmt.Errorf("list receipt items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var receiptID string
		var it entity.ReceiptItem
		if err := rows.Scan(&receiptID, &it.ProductID, &it.Quantity, &it.PurchasePrice, &it.SalePrice); err != nil {
			return err
		}
		rc := byID[receiptID]
		rc.Items = append(rc.Items, it)
	}
	return rows.Err()
}

func scanReceipt(row pgx.Row) (*entity.Receipt, error) {
	var rc entity.Receipt
	if err := row.Scan(&rc.ID, &rc.BranchID, &rc.Comment, &rc.CreatedBy, &rc.CreatedAt, &rc.CancelledBy, &rc.CancelledAt); err != nil {
		return nil, err
	}
	return &rc, nil
}
