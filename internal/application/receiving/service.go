package receiving

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Service ingresos de mercadería (compras) y su anulación.
type Service struct {
	engine *ledger.Engine
}

// NewService construye el servicio de ingresos.
func NewService(engine *ledger.Engine) *Service {
	return &Service{engine: engine}
}

// ReceiveInput ingreso a una sucursal.
type ReceiveInput struct {
	BranchID string
	Items    []entity.ReceiptItem
	Comment  string
	Actor    entity.Actor
}

// Result ingreso y existencias resultantes.
type Result struct {
	Receipt *entity.Receipt
	Levels  []entity.StockLevel
}

// ReceiveStock suma las cantidades con eventos RECEIPT y guarda el ingreso.
func (s *Service) ReceiveStock(ctx context.Context, in ReceiveInput) (*Result, error) {
	if in.BranchID == "" {
		return nil, domain.ErrInvalidInput
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
		if err := domain.CheckMoney(it.PurchasePrice); err != nil {
			return nil, err
		}
		if err := domain.CheckMoney(it.SalePrice); err != nil {
			return nil, err
		}
	}
	if !in.Actor.CanActFor(in.BranchID) {
		return nil, domain.ErrForbidden
	}

	rc := &entity.Receipt{
		ID:        uuid.New().String(),
		BranchID:  in.BranchID,
		Items:     append([]entity.ReceiptItem(nil), in.Items...),
		Comment:   strings.TrimSpace(in.Comment),
		CreatedBy: in.Actor.UserID,
	}
	events := make([]entity.LedgerEvent, 0, len(rc.Items))
	for _, it := range rc.Items {
		events = append(events, entity.LedgerEvent{
			Kind: entity.LedgerKindReceipt, BranchID: rc.BranchID, ProductID: it.ProductID,
			Delta: it.Quantity, Reference: rc.ID, CreatedBy: in.Actor.UserID,
		})
	}

	var out Result
	err := s.engine.Run(ctx, "receive_stock", func(tx *ledger.Tx) error {
		r := tx.Repos()
		if _, err := ledger.RequireActiveBranch(ctx, r.Catalog, rc.BranchID); err != nil {
			return err
		}
		if err := ledger.RequireActiveProducts(ctx, r.Catalog, ledger.EventProducts(events)); err != nil {
			return err
		}
		res, err := tx.Apply(ctx, events)
		if err != nil {
			return err
		}
		rc.CreatedAt = tx.Now()
		if err := r.Receipts.Create(ctx, rc); err != nil {
			return err
		}
		out = Result{Receipt: rc, Levels: res.LevelList()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelReceipt anula un ingreso con eventos RECEIPT_REVERT. Si parte de la mercadería
// ya salió de la sucursal la anulación falla con stock insuficiente.
func (s *Service) CancelReceipt(ctx context.Context, receiptID string, actor entity.Actor) (*Result, error) {
	var out Result
	err := s.engine.Run(ctx, "cancel_receipt", func(tx *ledger.Tx) error {
		r := tx.Repos()
		rc, err := r.Receipts.GetForUpdate(ctx, receiptID)
		if err != nil {
			return err
		}
		if rc == nil {
			return domain.ErrReceiptNotFound
		}
		if !actor.CanActFor(rc.BranchID) {
			return domain.ErrForbidden
		}
		if rc.IsCancelled() {
			return fmt.Errorf("%w: el ingreso %s ya fue anulado", domain.ErrInvalidState, rc.ID)
		}

		events := make([]entity.LedgerEvent, 0, len(rc.Items))
		for _, it := range rc.Items {
			events = append(events, entity.LedgerEvent{
				Kind: entity.LedgerKindReceiptRevert, BranchID: rc.BranchID, ProductID: it.ProductID,
				Delta: it.Quantity.Neg(), Reference: rc.ID, CreatedBy: actor.UserID,
			})
		}
		res, err := tx.Apply(ctx, events)
		if err != nil {
			return err
		}
		now := tx.Now()
		rc.CancelledAt = &now
		rc.CancelledBy = actor.UserID
		if err := r.Receipts.MarkCancelled(ctx, rc); err != nil {
			return err
		}
		out = Result{Receipt: rc, Levels: res.LevelList()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get devuelve un ingreso por id.
func (s *Service) Get(ctx context.Context, id string) (*entity.Receipt, error) {
	var rc *entity.Receipt
	err := s.engine.View(ctx, func(r ledger.Repositories) error {
		var err error
		rc, err = r.Receipts.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, domain.ErrReceiptNotFound
	}
	return rc, nil
}

// List ingresos de una sucursal, más recientes primero.
func (s *Service) List(ctx context.Context, branchID string, limit, offset int) ([]*entity.Receipt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var list []*entity.Receipt
	err := s.engine.View(ctx, func(r ledger.Repositories) error {
		var err error
		list, err = r.Receipts.ListByBranch(ctx, branchID, limit, offset)
		return err
	})
	return list, err
}
