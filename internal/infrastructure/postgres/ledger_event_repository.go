package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.LedgerEventRepository = (*LedgerEventRepo)(nil)

// LedgerEventRepo libro de eventos sobre PostgreSQL. Seq lo asigna el BIGSERIAL.
type LedgerEventRepo struct {
	q Querier
}

// NewLedgerEventRepository construye el adaptador del libro.
func NewLedgerEventRepository(q Querier) *LedgerEventRepo {
	return &LedgerEventRepo{q: q}
}

const insertEvent = `
	INSERT INTO ledger_events (id, kind, branch_id, product_id, delta, reference, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING seq`

// Append inserta el lote en un solo viaje y devuelve los eventos con Seq.
func (r *LedgerEventRepo) Append(ctx context.Context, events []entity.LedgerEvent) ([]entity.LedgerEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(insertEvent, ev.ID, string(ev.Kind), ev.BranchID, ev.ProductID, ev.Delta, ev.Reference, ev.CreatedBy, ev.CreatedAt)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	out := make([]entity.LedgerEvent, len(events))
	for i, ev := range events {
		if err := br.QueryRow().Scan(&ev.Seq); err != nil {
			return nil, fmt.Errorf("append ledger event %d: %w", i, err)
		}
		out[i] = ev
	}
	return out, nil
}

// List eventos filtrados, en orden de seq.
func (r *LedgerEventRepo) List(ctx context.Context, f repository.LedgerEventFilter) ([]*entity.LedgerEvent, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.BranchID != "" {
		add("branch_id = $%d", f.BranchID)
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.Reference != "" {
		add("reference = $%d", f.Reference)
	}

	query := `SELECT seq, id, kind, branch_id, product_id, delta, reference, created_by, created_at FROM ledger_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
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
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	defer rows.Close()
	var list []*entity.LedgerEvent
	for rows.Next() {
		var ev entity.LedgerEvent
		var kind string
		if err := rows.Scan(&ev.Seq, &ev.ID, &kind, &ev.BranchID, &ev.ProductID, &ev.Delta, &ev.Reference, &ev.CreatedBy, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Kind = entity.LedgerEventKind(kind)
		list = append(list, &ev)
	}
	return list, rows.Err()
}

// SumByKey suma de deltas por clave, para conciliar contra stock_levels.
func (r *LedgerEventRepo) SumByKey(ctx context.Context, branchID string) (map[entity.StockKey]decimal.Decimal, error) {
	rows, err := r.q.Query(ctx, `
		SELECT branch_id, product_id, SUM(delta)
		FROM ledger_events WHERE ($1 = '' OR branch_id = $1)
		GROUP BY branch_id, product_id`, branchID)
	if err != nil {
		return nil, fmt.Errorf("sum ledger events: %w", err)
	}
	defer rows.Close()
	out := map[entity.StockKey]decimal.Decimal{}
	for rows.Next() {
		var k entity.StockKey
		var sum decimal.Decimal
		if err := rows.Scan(&k.BranchID, &k.ProductID, &sum); err != nil {
			return nil, err
		}
		out[k] = sum
	}
	return out, rows.Err()
}

// ExistsByReference indica si ya hay eventos de ese tipo para la referencia.
func (r *LedgerEventRepo) ExistsByReference(ctx context.Context, kind entity.LedgerEventKind, reference string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger_events WHERE kind = $1 AND reference = $2)`,
		string(kind), reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists ledger event: %w", err)
	}
	return exists, nil
}
