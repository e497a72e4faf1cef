package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.ClientRepository = (*ClientRepo)(nil)
	_ repository.DebtRepository   = (*DebtRepo)(nil)
)

// ClientRepo saldo deudor de clientes sobre PostgreSQL.
type ClientRepo struct {
	q Querier
}

// NewClientRepository construye el adaptador. Pasar pool o tx (Querier).
func NewClientRepository(q Querier) *ClientRepo {
	return &ClientRepo{q: q}
}

// GetByID obtiene un cliente por ID. (nil, nil) si no existe.
func (r *ClientRepo) GetByID(ctx context.Context, id string) (*entity.Client, error) {
	return r.get(ctx, `SELECT id, name, phone, debt, updated_at FROM clients WHERE id = $1`, id)
}

// GetForUpdate bloquea la fila del cliente.
func (r *ClientRepo) GetForUpdate(ctx context.Context, id string) (*entity.Client, error) {
	return r.get(ctx, `SELECT id, name, phone, debt, updated_at FROM clients WHERE id = $1 FOR UPDATE`, id)
}

func (r *ClientRepo) get(ctx context.Context, query, id string) (*entity.Client, error) {
	var c entity.Client
	err := r.q.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Debt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

// UpdateDebt persiste la deuda. El CHECK debt >= 0 de la tabla la respalda.
func (r *ClientRepo) UpdateDebt(ctx context.Context, c *entity.Client) error {
	tag, err := r.q.Exec(ctx, `UPDATE clients SET debt = $2, updated_at = $3 WHERE id = $1`, c.ID, c.Debt, c.UpdatedAt)
	if err != nil {
		return mapError(fmt.Errorf("update client debt: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update client debt %s: fila inexistente", c.ID)
	}
	return nil
}

// DebtRepo historial de deuda (solo inserción).
type DebtRepo struct {
	q Querier
}

// NewDebtRepository construye el adaptador del historial de deuda.
func NewDebtRepository(q Querier) *DebtRepo {
	return &DebtRepo{q: q}
}

// Append agrega un movimiento de deuda.
func (r *DebtRepo) Append(ctx context.Context, e *entity.DebtEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO client_debts (id, client_id, sale_id, kind, amount, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.ClientID, nullable(e.SaleID), string(e.Kind), e.Amount, e.CreatedBy, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append debt entry: %w", err)
	}
	return nil
}

// ListByClient historial del cliente en orden cronológico.
func (r *DebtRepo) ListByClient(ctx context.Context, clientID string) ([]*entity.DebtEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, client_id, sale_id, kind, amount, created_by, created_at
		FROM client_debts WHERE client_id = $1 ORDER BY created_at, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list debt entries: %w", err)
	}
	defer rows.Close()
	var list []*entity.DebtEntry
	for rows.Next() {
		var e entity.DebtEntry
		var saleID *string
		var kind string
		if err := rows.Scan(&e.ID, &e.ClientID, &saleID, &kind, &e.Amount, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.SaleID = deref(saleID)
		e.Kind = entity.DebtKind(kind)
		list = append(list, &e)
	}
	return list, rows.Err()
}
