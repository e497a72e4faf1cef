package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var _ ledger.Store = (*Store)(nil)

var errReadOnly = errors.New("memory: escritura en vista de solo lectura")

// Store almacenamiento en memoria con transacciones: cada Run escribe en una capa
// propia que se vuelca al estado confirmado de una sola vez.
type Store struct {
	mu    sync.RWMutex
	data  *state
	locks *lockTable
	seq   atomic.Int64
}

type state struct {
	branches  map[string]entity.Branch
	products  map[string]entity.Product
	clients   map[string]entity.Client
	levels    map[entity.StockKey]entity.StockLevel
	events    []entity.LedgerEvent
	movements map[string]entity.Movement
	sales     map[string]entity.Sale
	returns   []entity.SaleReturn
	debts     []entity.DebtEntry
	receipts  map[string]entity.Receipt
}

// New crea un store vacío. lockTimeout acota la espera por cada bloqueo.
func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Store{
		data: &state{
			branches:  map[string]entity.Branch{},
			products:  map[string]entity.Product{},
			clients:   map[string]entity.Client{},
			levels:    map[entity.StockKey]entity.StockLevel{},
			movements: map[string]entity.Movement{},
			sales:     map[string]entity.Sale{},
			receipts:  map[string]entity.Receipt{},
		},
		locks: newLockTable(lockTimeout),
	}
}

// Run ejecuta fn en una transacción. Una vez que fn terminó bien, el volcado no
// mira el contexto: un lote confirmado no se pierde porque el llamador se fue.
func (s *Store) Run(ctx context.Context, fn func(ledger.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := newTx(s, false)
	defer tx.releaseLocks()

	if err := fn(tx.repositories()); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

// Snapshot lectura consistente: mantiene el lock de lectura durante fn.
func (s *Store) Snapshot(ctx context.Context, fn func(ledger.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(newTx(s, true).repositories())
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range tx.levels {
		s.data.levels[k] = v
	}
	s.data.events = append(s.data.events, tx.events...)
	for id, m := range tx.movements {
		s.data.movements[id] = m
	}
	for id, sale := range tx.sales {
		s.data.sales[id] = sale
	}
	s.data.returns = append(s.data.returns, tx.returns...)
	for id, c := range tx.clients {
		s.data.clients[id] = c
	}
	s.data.debts = append(s.data.debts, tx.debts...)
	for id, r := range tx.receipts {
		s.data.receipts[id] = r
	}
}

// AddBranch registra una sucursal en el catálogo.
func (s *Store) AddBranch(b entity.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.branches[b.ID] = b
}

// AddProduct registra un producto en el catálogo.
func (s *Store) AddProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = p
}

// AddClient registra un cliente.
func (s *Store) AddClient(c entity.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.clients[c.ID] = c
}
