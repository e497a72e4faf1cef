package transfer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service flujo de traslados entre sucursales: waiting -> done | rejected.
// El stock no se reserva al crear; se vuelve a validar al aceptar.
type Service struct {
	engine *ledger.Engine
}

// NewService construye el servicio de traslados.
func NewService(engine *ledger.Engine) *Service {
	return &Service{engine: engine}
}

// CreateMovementInput datos para solicitar un traslado.
type CreateMovementInput struct {
	FromBranchID string
	ToBranchID   string
	Items        []entity.MovementItem
	Comment      string
	Actor        entity.Actor
}

// Result traslado más las existencias resultantes (vacías si no hubo efecto en stock).
type Result struct {
	Movement *entity.Movement
	Levels   []entity.StockLevel
}

// CreateMovement valida y guarda el traslado en waiting. No emite eventos.
func (s *Service) CreateMovement(ctx context.Context, in CreateMovementInput) (*entity.Movement, error) {
	if in.FromBranchID == "" || in.ToBranchID == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.FromBranchID == in.ToBranchID {
		return nil, domain.ErrInvalidBranches
	}
	if len(in.Items) == 0 {
		return nil, domain.ErrEmptyItems
	}
	for _, it := range in.Items {
		if it.ProductID == "" {
			return nil, domain.ErrInvalidInput
		}
		if err := domain.CheckQuantity(it.Quantity); err != nil {
			return nil, err
		}
	}
	if !in.Actor.CanActFor(in.FromBranchID) {
		return nil, domain.ErrForbidden
	}

	m := &entity.Movement{
		ID:           uuid.New().String(),
		FromBranchID: in.FromBranchID,
		ToBranchID:   in.ToBranchID,
		Status:       entity.MovementStatusWaiting,
		Items:        append([]entity.MovementItem(nil), in.Items...),
		Comment:      strings.TrimSpace(in.Comment),
		CreatedBy:    in.Actor.UserID,
	}
	err := s.engine.Run(ctx, "create_movement", func(tx *ledger.Tx) error {
		r := tx.Repos()
		if _, err := ledger.RequireActiveBranch(ctx, r.Catalog, m.FromBranchID); err != nil {
			return err
		}
		if _, err := ledger.RequireActiveBranch(ctx, r.Catalog, m.ToBranchID); err != nil {
			return err
		}
		totals := m.QuantitiesByProduct()
		products := sortedKeys(totals)
		if err := ledger.RequireActiveProducts(ctx, r.Catalog, products); err != nil {
			return err
		}
		// lectura sin bloqueo: solo informa, Accept vuelve a validar
		for _, pid := range products {
			lvl, err := r.Stock.Get(ctx, m.FromBranchID, pid)
			if err != nil {
				return err
			}
			if lvl.Quantity.LessThan(totals[pid]) {
				return &domain.InsufficientStockError{
					BranchID: m.FromBranchID, ProductID: pid,
					Requested: totals[pid], Available: lvl.Quantity,
				}
			}
		}
		m.CreatedAt = tx.Now()
		return r.Movements.Create(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Accept aplica TRANSFER_OUT en origen y TRANSFER_IN en destino y pasa el traslado a done,
// todo en la misma transacción. Si falta stock el traslado sigue en waiting.
func (s *Service) Accept(ctx context.Context, movementID string, actor entity.Actor) (*Result, error) {
	var out Result
	err := s.engine.Run(ctx, "accept_movement", func(tx *ledger.Tx) error {
		r := tx.Repos()
		m, err := s.lockWaiting(ctx, r, movementID, actor)
		if err != nil {
			return err
		}
		// mismas reglas de catálogo que CreateMovement: ambas sucursales y los productos activos
		for _, id := range []string{m.FromBranchID, m.ToBranchID} {
			if _, err := ledger.RequireActiveBranch(ctx, r.Catalog, id); err != nil {
				return err
			}
		}
		if err := ledger.RequireActiveProducts(ctx, r.Catalog, sortedKeys(m.QuantitiesByProduct())); err != nil {
			return err
		}

		events := make([]entity.LedgerEvent, 0, 2*len(m.Items))
		for _, it := range m.Items {
			events = append(events,
				entity.LedgerEvent{Kind: entity.LedgerKindTransferOut, BranchID: m.FromBranchID, ProductID: it.ProductID,
					Delta: it.Quantity.Neg(), Reference: m.ID, CreatedBy: actor.UserID},
				entity.LedgerEvent{Kind: entity.LedgerKindTransferIn, BranchID: m.ToBranchID, ProductID: it.ProductID,
					Delta: it.Quantity, Reference: m.ID, CreatedBy: actor.UserID},
			)
		}
		res, err := tx.Apply(ctx, events)
		if err != nil {
			return err
		}

		now := tx.Now()
		m.Status = entity.MovementStatusDone
		m.ProcessedBy = actor.UserID
		m.ProcessedAt = &now
		if err := r.Movements.UpdateStatus(ctx, m); err != nil {
			return err
		}
		out = Result{Movement: m, Levels: res.LevelList()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Reject cierra el traslado sin efecto en stock. El motivo es obligatorio.
func (s *Service) Reject(ctx context.Context, movementID, reason string, actor entity.Actor) (*entity.Movement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}
	var out *entity.Movement
	err := s.engine.Run(ctx, "reject_movement", func(tx *ledger.Tx) error {
		r := tx.Repos()
		m, err := s.lockWaiting(ctx, r, movementID, actor)
		if err != nil {
			return err
		}
		now := tx.Now()
		m.Status = entity.MovementStatusRejected
		m.Reason = reason
		m.ProcessedBy = actor.UserID
		m.ProcessedAt = &now
		if err := r.Movements.UpdateStatus(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Revert deshace un traslado aceptado con eventos TRANSFER_REVERT (referencia = id del traslado).
// El traslado queda en done; solo se puede revertir una vez.
func (s *Service) Revert(ctx context.Context, movementID string, actor entity.Actor) (*Result, error) {
	var out Result
	err := s.engine.Run(ctx, "revert_movement", func(tx *ledger.Tx) error {
		r := tx.Repos()
		m, err := r.Movements.GetForUpdate(ctx, movementID)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.ErrMovementNotFound
		}
		if !actor.CanActFor(m.ToBranchID) {
			return domain.ErrForbidden
		}
		if m.Status != entity.MovementStatusDone {
			return fmt.Errorf("%w: el traslado %s está %s", domain.ErrInvalidState, m.ID, m.Status)
		}
		reverted, err := r.Events.ExistsByReference(ctx, entity.LedgerKindTransferRevert, m.ID)
		if err != nil {
			return err
		}
		if reverted {
			return fmt.Errorf("%w: el traslado %s ya fue revertido", domain.ErrInvalidState, m.ID)
		}

		events := make([]entity.LedgerEvent, 0, 2*len(m.Items))
		for _, it := range m.Items {
			events = append(events,
				entity.LedgerEvent{Kind: entity.LedgerKindTransferRevert, BranchID: m.ToBranchID, ProductID: it.ProductID,
					Delta: it.Quantity.Neg(), Reference: m.ID, CreatedBy: actor.UserID},
				entity.LedgerEvent{Kind: entity.LedgerKindTransferRevert, BranchID: m.FromBranchID, ProductID: it.ProductID,
					Delta: it.Quantity, Reference: m.ID, CreatedBy: actor.UserID},
			)
		}
		res, err := tx.Apply(ctx, events)
		if err != nil {
			return err
		}
		out = Result{Movement: m, Levels: res.LevelList()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// lockWaiting bloquea el traslado y exige estado waiting y actor de la sucursal destino.
func (s *Service) lockWaiting(ctx context.Context, r ledger.Repositories, id string, actor entity.Actor) (*entity.Movement, error) {
	m, err := r.Movements.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrMovementNotFound
	}
	if !actor.CanActFor(m.ToBranchID) {
		return nil, domain.ErrForbidden
	}
	if m.Status != entity.MovementStatusWaiting {
		return nil, fmt.Errorf("%w: el traslado %s está %s", domain.ErrInvalidState, m.ID, m.Status)
	}
	return m, nil
}

// Get devuelve un traslado por id.
func (s *Service) Get(ctx context.Context, id string) (*entity.Movement, error) {
	var m *entity.Movement
	err := s.engine.View(ctx, func(r ledger.Repositories) error {
		var err error
		m, err = r.Movements.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrMovementNotFound
	}
	return m, nil
}

// List traslados por estado y/o sucursal (origen o destino), más recientes primero.
func (s *Service) List(ctx context.Context, filter repository.MovementFilter) ([]*entity.Movement, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.ErrInvalidInput
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	var list []*entity.Movement
	err := s.engine.View(ctx, func(r ledger.Repositories) error {
		var err error
		list, err = r.Movements.List(ctx, filter)
		return err
	})
	return list, err
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
