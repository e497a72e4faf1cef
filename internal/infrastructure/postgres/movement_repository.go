package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo traslados entre sucursales sobre PostgreSQL.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, from_branch_id, to_branch_id, status, comment, reason, created_by, processed_by, created_at, processed_at`

// Create persiste el traslado y sus líneas.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO movements (`+movementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.FromBranchID, m.ToBranchID, string(m.Status), m.Comment, m.Reason,
		m.CreatedBy, m.ProcessedBy, m.CreatedAt, m.ProcessedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return mapError(err)
		}
		return fmt.Errorf("create movement: %w", err)
	}
	batch := &pgx.Batch{}
	for i, it := range m.Items {
		batch.Queue(`INSERT INTO movement_items (movement_id, position, product_id, quantity) VALUES ($1, $2, $3, $4)`,
			m.ID, i, it.ProductID, it.Quantity)
	}
	if err := r.q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("create movement items: %w", err)
	}
	return nil
}

// GetByID obtiene un traslado por ID. (nil, nil) si no existe.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	return r.get(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = $1`, id)
}

// GetForUpdate bloquea la fila del traslado hasta el fin de la transacción.
func (r *MovementRepo) GetForUpdate(ctx context.Context, id string) (*entity.Movement, error) {
	return r.get(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = $1 FOR UPDATE`, id)
}

func (r *MovementRepo) get(ctx context.Context, query, id string) (*entity.Movement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.Movement{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateStatus persiste estado, motivo y datos de procesamiento.
func (r *MovementRepo) UpdateStatus(ctx context.Context, m *entity.Movement) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE movements SET status = $2, reason = $3, processed_by = $4, processed_at = $5
		WHERE id = $1`, m.ID, string(m.Status), m.Reason, m.ProcessedBy, m.ProcessedAt)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update movement %s: fila inexistente", m.ID)
	}
	return nil
}

// List traslados filtrados, más recientes primero.
func (r *MovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.BranchID != "" {
		args = append(args, f.BranchID)
		where = append(where, fmt.Sprintf("(from_branch_id = $%d OR to_branch_id = $%d)", len(args), len(args)))
	}
	query := `SELECT ` + movementColumns + ` FROM movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, m)
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

// loadItems completa las líneas de varios traslados con una sola consulta.
func (r *MovementRepo) loadItems(ctx context.Context, list []*entity.Movement) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Movement, len(list))
	ids := make([]string, 0, len(list))
	for _, m := range list {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT movement_id, product_id, quantity FROM movement_items
		WHERE movement_id = ANY($1) ORDER BY movement_id, position`, ids)
	if err != nil {
		return fmt.Errorf("list movement items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var movementID string
		var it entity.MovementItem
		if err := rows.Scan(&movementID, &it.ProductID, &it.Quantity); err != nil {
			return err
		}
		m := byID[movementID]
		m.Items = append(m.Items, it)
	}
	return rows.Err()
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	var status string
	if err := row.Scan(&m.ID, &m.FromBranchID, &m.ToBranchID, &status, &m.Comment, &m.Reason,
		&m.CreatedBy, &m.ProcessedBy, &m.CreatedAt, &m.ProcessedAt); err != nil {
		return nil, err
	}
	m.Status = entity.MovementStatus(status)
	return &m, nil
}
