package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.StockRepository       = (*stockRepo)(nil)
	_ repository.LedgerEventRepository = (*eventRepo)(nil)
	_ repository.MovementRepository    = (*movementRepo)(nil)
	_ repository.SaleRepository        = (*saleRepo)(nil)
	_ repository.ClientRepository      = (*clientRepo)(nil)
	_ repository.DebtRepository        = (*debtRepo)(nil)
	_ repository.ReceiptRepository     = (*receiptRepo)(nil)
	_ repository.CatalogRepository     = (*catalogRepo)(nil)
)

func stockLock(branchID, productID string) string { return "stock:" + branchID + "/" + productID }

// --- stock ---

type stockRepo struct{ tx *memTx }

func (r *stockRepo) Get(_ context.Context, branchID, productID string) (*entity.StockLevel, error) {
	k := entity.StockKey{BranchID: branchID, ProductID: productID}
	if lvl, ok := r.tx.levels[k]; ok {
		return &lvl, nil
	}
	lvl := entity.StockLevel{BranchID: branchID, ProductID: productID, Quantity: decimal.Zero}
	r.tx.view(func(st *state) {
		if v, ok := st.levels[k]; ok {
			lvl = v
		}
	})
	return &lvl, nil
}

func (r *stockRepo) GetForUpdate(ctx context.Context, branchID, productID string) (*entity.StockLevel, error) {
	if err := r.tx.lock(ctx, stockLock(branchID, productID)); err != nil {
		return nil, err
	}
	return r.Get(ctx, branchID, productID)
}

func (r *stockRepo) Upsert(_ context.Context, level *entity.StockLevel) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if level.Quantity.IsNegative() {
		return fmt.Errorf("memory: cantidad negativa para %s", level.Key())
	}
	r.tx.levels[level.Key()] = *level
	return nil
}

func (r *stockRepo) ListByBranch(_ context.Context, branchID string) ([]*entity.StockLevel, error) {
	merged := map[entity.StockKey]entity.StockLevel{}
	r.tx.view(func(st *state) {
		for k, v := range st.levels {
			if branchID == "" || k.BranchID == branchID {
				merged[k] = v
			}
		}
	})
	for k, v := range r.tx.levels {
		if branchID == "" || k.BranchID == branchID {
			merged[k] = v
		}
	}
	out := make([]*entity.StockLevel, 0, len(merged))
	for _, v := range merged {
		v := v
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

// --- libro ---

type eventRepo struct{ tx *memTx }

func (r *eventRepo) Append(_ context.Context, events []entity.LedgerEvent) ([]entity.LedgerEvent, error) {
	if err := r.tx.writable(); err != nil {
		return nil, err
	}
	out := make([]entity.LedgerEvent, len(events))
	for i, ev := range events {
		ev.Seq = r.tx.s.seq.Add(1)
		out[i] = ev
	}
	r.tx.events = append(r.tx.events, out...)
	return out, nil
}

func (r *eventRepo) all() []entity.LedgerEvent {
	var out []entity.LedgerEvent
	r.tx.view(func(st *state) {
		out = make([]entity.LedgerEvent, 0, len(st.events)+len(r.tx.events))
		out = append(out, st.events...)
	})
	out = append(out, r.tx.events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (r *eventRepo) List(_ context.Context, f repository.LedgerEventFilter) ([]*entity.LedgerEvent, error) {
	var out []*entity.LedgerEvent
	skipped := 0
	for _, ev := range r.all() {
		if f.BranchID != "" && ev.BranchID != f.BranchID ||
			f.ProductID != "" && ev.ProductID != f.ProductID ||
			f.Kind != "" && ev.Kind != f.Kind ||
			f.Reference != "" && ev.Reference != f.Reference {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		ev := ev
		out = append(out, &ev)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (r *eventRepo) SumByKey(_ context.Context, branchID string) (map[entity.StockKey]decimal.Decimal, error) {
	sums := map[entity.StockKey]decimal.Decimal{}
	for _, ev := range r.all() {
		if branchID != "" && ev.BranchID != branchID {
			continue
		}
		sums[ev.Key()] = sums[ev.Key()].Add(ev.Delta)
	}
	return sums, nil
}

func (r *eventRepo) ExistsByReference(_ context.Context, kind entity.LedgerEventKind, reference string) (bool, error) {
	for _, ev := range r.all() {
		if ev.Kind == kind && ev.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

// --- traslados ---

type movementRepo struct{ tx *memTx }

func (r *movementRepo) Create(ctx context.Context, m *entity.Movement) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if existing, _ := r.GetByID(ctx, m.ID); existing != nil {
		return fmt.Errorf("movimiento %s: %w", m.ID, domain.ErrConflict)
	}
	r.tx.movements[m.ID] = m.Clone()
	return nil
}

func (r *movementRepo) GetByID(_ context.Context, id string) (*entity.Movement, error) {
	if m, ok := r.tx.movements[id]; ok {
		c := m.Clone()
		return &c, nil
	}
	var out *entity.Movement
	r.tx.view(func(st *state) {
		if m, ok := st.movements[id]; ok {
			c := m.Clone()
			out = &c
		}
	})
	return out, nil
}

func (r *movementRepo) GetForUpdate(ctx context.Context, id string) (*entity.Movement, error) {
	if err := r.tx.lock(ctx, "movement:"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *movementRepo) UpdateStatus(ctx context.Context, m *entity.Movement) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	current, _ := r.GetByID(ctx, m.ID)
	if current == nil {
		return domain.ErrMovementNotFound
	}
	current.Status = m.Status
	current.Reason = m.Reason
	current.ProcessedBy = m.ProcessedBy
	current.ProcessedAt = m.ProcessedAt
	r.tx.movements[m.ID] = current.Clone()
	return nil
}

func (r *movementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	merged := map[string]entity.Movement{}
	r.tx.view(func(st *state) {
		for id, m := range st.movements {
			merged[id] = m
		}
	})
	for id, m := range r.tx.movements {
		merged[id] = m
	}
	var list []*entity.Movement
	for _, m := range merged {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.BranchID != "" && m.FromBranchID != f.BranchID && m.ToBranchID != f.BranchID {
			continue
		}
		c := m.Clone()
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return paginate(list, f.Limit, f.Offset), nil
}

// --- ventas ---

type saleRepo struct{ tx *memTx }

func (r *saleRepo) Create(ctx context.Context, s *entity.Sale) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if existing, _ := r.GetByID(ctx, s.ID); existing != nil {
		return fmt.Errorf("venta %s: %w", s.ID, domain.ErrConflict)
	}
	r.tx.sales[s.ID] = s.Clone()
	return nil
}

func (r *saleRepo) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	if s, ok := r.tx.sales[id]; ok {
		c := s.Clone()
		return &c, nil
	}
	var out *entity.Sale
	r.tx.view(func(st *state) {
		if s, ok := st.sales[id]; ok {
			c := s.Clone()
			out = &c
		}
	})
	return out, nil
}

func (r *saleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	if err := r.tx.lock(ctx, "sale:"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *saleRepo) UpdateReturnedQuantities(ctx context.Context, s *entity.Sale) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	current, _ := r.GetByID(ctx, s.ID)
	if current == nil {
		return domain.ErrSaleNotFound
	}
	for _, it := range s.Items {
		if line, ok := current.ItemByID(it.ID); ok {
			line.ReturnedQuantity = it.ReturnedQuantity
		}
	}
	r.tx.sales[s.ID] = current.Clone()
	return nil
}

func (r *saleRepo) CreateReturn(_ context.Context, ret *entity.SaleReturn) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	r.tx.returns = append(r.tx.returns, ret.Clone())
	return nil
}

func (r *saleRepo) ListReturns(_ context.Context, saleID string) ([]*entity.SaleReturn, error) {
	var all []entity.SaleReturn
	r.tx.view(func(st *state) {
		all = append(all, st.returns...)
	})
	all = append(all, r.tx.returns...)
	var out []*entity.SaleReturn
	for _, ret := range all {
		if ret.SaleID == saleID {
			c := ret.Clone()
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- clientes y deuda ---

type clientRepo struct{ tx *memTx }

func (r *clientRepo) GetByID(_ context.Context, id string) (*entity.Client, error) {
	if c, ok := r.tx.clients[id]; ok {
		return &c, nil
	}
	var out *entity.Client
	r.tx.view(func(st *state) {
		if c, ok := st.clients[id]; ok {
			out = &c
		}
	})
	return out, nil
}

func (r *clientRepo) GetForUpdate(ctx context.Context, id string) (*entity.Client, error) {
	if err := r.tx.lock(ctx, "client:"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *clientRepo) UpdateDebt(ctx context.Context, c *entity.Client) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if c.Debt.IsNegative() {
		return fmt.Errorf("memory: deuda negativa para cliente %s", c.ID)
	}
	current, _ := r.GetByID(ctx, c.ID)
	if current == nil {
		return domain.ErrClientNotFound
	}
	current.Debt = c.Debt
	current.UpdatedAt = c.UpdatedAt
	r.tx.clients[c.ID] = *current
	return nil
}

type debtRepo struct{ tx *memTx }

func (r *debtRepo) Append(_ context.Context, entry *entity.DebtEntry) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	r.tx.debts = append(r.tx.debts, *entry)
	return nil
}

func (r *debtRepo) ListByClient(_ context.Context, clientID string) ([]*entity.DebtEntry, error) {
	var all []entity.DebtEntry
	r.tx.view(func(st *state) {
		all = append(all, st.debts...)
	})
	all = append(all, r.tx.debts...)
	var out []*entity.DebtEntry
	for _, d := range all {
		if d.ClientID == clientID {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

// --- ingresos ---

type receiptRepo struct{ tx *memTx }

func (r *receiptRepo) Create(ctx context.Context, rc *entity.Receipt) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	if existing, _ := r.GetByID(ctx, rc.ID); existing != nil {
		return fmt.Errorf("ingreso %s: %w", rc.ID, domain.ErrConflict)
	}
	r.tx.receipts[rc.ID] = rc.Clone()
	return nil
}

func (r *receiptRepo) GetByID(_ context.Context, id string) (*entity.Receipt, error) {
	if rc, ok := r.tx.receipts[id]; ok {
		c := rc.Clone()
		return &c, nil
	}
	var out *entity.Receipt
	r.tx.view(func(st *state) {
		if rc, ok := st.receipts[id]; ok {
			c := rc.Clone()
			out = &c
		}
	})
	return out, nil
}

func (r *receiptRepo) GetForUpdate(ctx context.Context, id string) (*entity.Receipt, error) {
	if err := r.tx.lock(ctx, "receipt:"+id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *receiptRepo) MarkCancelled(ctx context.Context, rc *entity.Receipt) error {
	if err := r.tx.writable(); err != nil {
		return err
	}
	current, _ := r.GetByID(ctx, rc.ID)
	if current == nil {
		return domain.ErrReceiptNotFound
	}
	current.CancelledBy = rc.CancelledBy
	current.CancelledAt = rc.CancelledAt
	r.tx.receipts[rc.ID] = current.Clone()
	return nil
}

func (r *receiptRepo) ListByBranch(_ context.Context, branchID string, limit, offset int) ([]*entity.Receipt, error) {
	merged := map[string]entity.Receipt{}
	r.tx.view(func(st *state) {
		for id, rc := range st.receipts {
			merged[id] = rc
		}
	})
	for id, rc := range r.tx.receipts {
		merged[id] = rc
	}
	var list []*entity.Receipt
	for _, rc := range merged {
		if branchID != "" && rc.BranchID != branchID {
			continue
		}
		c := rc.Clone()
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return paginate(list, limit, offset), nil
}

// --- catálogo ---

type catalogRepo struct{ tx *memTx }

func (r *catalogRepo) GetBranch(_ context.Context, id string) (*entity.Branch, error) {
	var out *entity.Branch
	r.tx.view(func(st *state) {
		if b, ok := st.branches[id]; ok {
			out = &b
		}
	})
	return out, nil
}

func (r *catalogRepo) GetProduct(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	r.tx.view(func(st *state) {
		if p, ok := st.products[id]; ok {
			out = &p
		}
	})
	return out, nil
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}
	if offset > 0 {
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
