package memory

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// memTx capa de escritura de una transacción más los bloqueos que tiene tomados.
type memTx struct {
	s        *Store
	readOnly bool // vista de Snapshot: el llamador ya tiene el RLock

	held  map[string]struct{}
	order []string

	levels    map[entity.StockKey]entity.StockLevel
	events    []entity.LedgerEvent
	movements map[string]entity.Movement
	sales     map[string]entity.Sale
	returns   []entity.SaleReturn
	clients   map[string]entity.Client
	debts     []entity.DebtEntry
	receipts  map[string]entity.Receipt
}

func newTx(s *Store, readOnly bool) *memTx {
	return &memTx{
		s:         s,
		readOnly:  readOnly,
		held:      map[string]struct{}{},
		levels:    map[entity.StockKey]entity.StockLevel{},
		movements: map[string]entity.Movement{},
		sales:     map[string]entity.Sale{},
		clients:   map[string]entity.Client{},
		receipts:  map[string]entity.Receipt{},
	}
}

func (t *memTx) repositories() ledger.Repositories {
	return ledger.Repositories{
		Stock:     &stockRepo{t},
		Events:    &eventRepo{t},
		Movements: &movementRepo{t},
		Sales:     &saleRepo{t},
		Clients:   &clientRepo{t},
		Debts:     &debtRepo{t},
		Receipts:  &receiptRepo{t},
		Catalog:   &catalogRepo{t},
	}
}

// lock toma el candado una sola vez por transacción.
func (t *memTx) lock(ctx context.Context, name string) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.held[name]; ok {
		return nil
	}
	if err := t.s.locks.acquire(ctx, name); err != nil {
		return err
	}
	t.held[name] = struct{}{}
	t.order = append(t.order, name)
	return nil
}

func (t *memTx) releaseLocks() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.s.locks.release(t.order[i])
	}
	t.order = nil
	t.held = map[string]struct{}{}
}

// view lee el estado confirmado.
func (t *memTx) view(fn func(st *state)) {
	if t.readOnly {
		fn(t.s.data)
		return
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	fn(t.s.data)
}

func (t *memTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}
