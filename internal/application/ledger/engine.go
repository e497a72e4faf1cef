package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/pkg/logger"
	"github.com/jhoicas/stock-ledger/pkg/metrics"
)

const publishTimeout = 5 * time.Second

// Engine aplica lotes de eventos sobre las existencias de forma atómica.
// Es la única vía de escritura de StockLevel y del libro de eventos.
type Engine struct {
	store     Store
	publisher EventPublisher
	metrics   *metrics.LedgerMetrics
	log       *logger.Logger
	now       func() time.Time
}

// Option configura el Engine.
type Option func(*Engine)

// WithPublisher publica los eventos confirmados.
func WithPublisher(p EventPublisher) Option { return func(e *Engine) { e.publisher = p } }

// WithMetrics registra métricas del motor.
func WithMetrics(m *metrics.LedgerMetrics) Option { return func(e *Engine) { e.metrics = m } }

// WithLogger asigna el logger.
func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.log = l.Component("ledger") } }

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine construye el motor sobre un Store transaccional.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now hora actual según el reloj del motor; los servicios la usan para fechar documentos.
func (e *Engine) Now() time.Time { return e.now().UTC() }

// Result cantidades posteriores al lote por clave y los eventos con Seq asignado.
type Result struct {
	Events []entity.LedgerEvent
	Levels map[entity.StockKey]decimal.Decimal
}

// Tx transacción de un comando de dominio. Los lotes aplicados y las escrituras hechas
// con Repos() se confirman juntos al terminar Run.
type Tx struct {
	engine  *Engine
	repos   Repositories
	applied []entity.LedgerEvent
}

// Repos repositorios atados a la transacción.
func (t *Tx) Repos() Repositories { return t.repos }

// Now hora del motor.
func (t *Tx) Now() time.Time { return t.engine.Now() }

// Run ejecuta fn dentro de una transacción. command etiqueta métricas y logs.
// Tras el commit se registran métricas y se publican los eventos (best effort).
func (e *Engine) Run(ctx context.Context, command string, fn func(tx *Tx) error) error {
	start := time.Now()
	var tx *Tx
	err := e.store.Run(ctx, func(repos Repositories) error {
		tx = &Tx{engine: e, repos: repos}
		return fn(tx)
	})
	if err != nil {
		e.metrics.IncCommand(command, "error")
		e.metrics.ObserveBatch("error", time.Since(start))
		if reason := rejectReason(err); reason != "" {
			e.metrics.IncRejected(reason)
		}
		return err
	}

	e.metrics.IncCommand(command, "ok")
	e.metrics.ObserveBatch("ok", time.Since(start))
	if tx == nil || len(tx.applied) == 0 {
		return nil
	}
	perKind := make(map[entity.LedgerEventKind]int)
	for _, ev := range tx.applied {
		perKind[ev.Kind]++
	}
	for kind, n := range perKind {
		e.metrics.AddEvents(string(kind), n)
	}
	e.log.Debug().Str("command", command).Int("events", len(tx.applied)).
		Dur("elapsed", time.Since(start)).Msg("lote confirmado")
	e.publish(ctx, command, tx.applied)
	return nil
}

// El commit ya ocurrió: la cancelación del llamador no debe cortar la publicación.
func (e *Engine) publish(ctx context.Context, command string, events []entity.LedgerEvent) {
	if e.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(pctx, events); err != nil {
		e.log.Warn().Err(err).Str("command", command).Int("events", len(events)).
			Msg("no se pudieron publicar los eventos del libro")
	}
}

// Apply aplica un lote en su propia transacción.
func (e *Engine) Apply(ctx context.Context, events []entity.LedgerEvent) (*Result, error) {
	var res *Result
	err := e.Run(ctx, "apply", func(tx *Tx) error {
		var err error
		res, err = tx.Apply(ctx, events)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Apply valida el lote, bloquea las claves en orden ascendente y calcula las cantidades
// en el orden del lote. Si alguna quedara negativa no se escribe nada.
func (t *Tx) Apply(ctx context.Context, events []entity.LedgerEvent) (*Result, error) {
	if len(events) == 0 {
		return nil, domain.ErrEmptyItems
	}
	if err := t.validate(ctx, events); err != nil {
		return nil, err
	}

	keys := distinctKeys(events)
	start := make(map[entity.StockKey]decimal.Decimal, len(keys))
	for _, k := range keys {
		lvl, err := t.repos.Stock.GetForUpdate(ctx, k.BranchID, k.ProductID)
		if err != nil {
			return nil, err
		}
		start[k] = lvl.Quantity
	}

	running := make(map[entity.StockKey]decimal.Decimal, len(keys))
	outflow := make(map[entity.StockKey]decimal.Decimal, len(keys))
	for k, q := range start {
		running[k] = q
	}
	var short *entity.StockKey
	for _, ev := range events {
		k := ev.Key()
		running[k] = running[k].Add(ev.Delta)
		if ev.Delta.IsNegative() {
			outflow[k] = outflow[k].Add(ev.Delta.Neg())
		}
		if short == nil && running[k].IsNegative() {
			kk := k
			short = &kk
		}
	}
	if short != nil {
		return nil, &domain.InsufficientStockError{
			BranchID:  short.BranchID,
			ProductID: short.ProductID,
			Requested: outflow[*short],
			Available: start[*short],
		}
	}

	now := t.Now()
	for _, k := range keys {
		lvl := &entity.StockLevel{BranchID: k.BranchID, ProductID: k.ProductID, Quantity: running[k], UpdatedAt: now}
		if err := t.repos.Stock.Upsert(ctx, lvl); err != nil {
			return nil, err
		}
	}

	batch := make([]entity.LedgerEvent, len(events))
	for i, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		ev.CreatedAt = now
		batch[i] = ev
	}
	stored, err := t.repos.Events.Append(ctx, batch)
	if err != nil {
		return nil, err
	}
	t.applied = append(t.applied, stored...)

	return &Result{Events: stored, Levels: running}, nil
}

func (t *Tx) validate(ctx context.Context, events []entity.LedgerEvent) error {
	branches := map[string]bool{}
	products := map[string]bool{}
	for i, ev := range events {
		if !ev.Kind.IsValid() {
			return fmt.Errorf("%w: evento %d con tipo desconocido %q", domain.ErrInvalidInput, i, ev.Kind)
		}
		if ev.BranchID == "" || ev.ProductID == "" {
			return fmt.Errorf("%w: evento %d sin sucursal o producto", domain.ErrInvalidInput, i)
		}
		if ev.Delta.IsZero() {
			return fmt.Errorf("%w: evento %d con delta cero", domain.ErrInvalidQuantity, i)
		}
		if !domain.FitsScale(ev.Delta, domain.QuantityScale) {
			return fmt.Errorf("%w: evento %d con delta %s de más de %d decimales", domain.ErrInvalidQuantity, i, ev.Delta, domain.QuantityScale)
		}
		if !ev.Kind.AllowsDelta(ev.Delta) {
			return fmt.Errorf("%w: evento %d %s con delta %s", domain.ErrInvalidInput, i, ev.Kind, ev.Delta)
		}
		branches[ev.BranchID] = true
		products[ev.ProductID] = true
	}
	for id := range branches {
		b, err := t.repos.Catalog.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return domain.ErrBranchNotFound
		}
	}
	for id := range products {
		p, err := t.repos.Catalog.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrProductNotFound
		}
	}
	return nil
}

// distinctKeys claves del lote en el orden global de bloqueo.
func distinctKeys(events []entity.LedgerEvent) []entity.StockKey {
	seen := make(map[entity.StockKey]struct{}, len(events))
	keys := make([]entity.StockKey, 0, len(events))
	for _, ev := range events {
		k := ev.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOverReturn):
		return "over_return"
	case errors.Is(err, domain.ErrAmountMismatch), errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrEmptyItems):
		return "validation"
	}
	return ""
}
