package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Service liquidación de ventas, devoluciones y pagos de deuda.
// Es el único que modifica la deuda de los clientes.
type Service struct {
	engine  *ledger.Engine
	epsilon decimal.Decimal
}

// Option configura el servicio.
type Option func(*Service)

// WithAmountEpsilon tolerancia de redondeo entre el desglose de pago y el total.
func WithAmountEpsilon(eps decimal.Decimal) Option {
	return func(s *Service) {
		if !eps.IsNegative() {
			s.epsilon = eps
		}
	}
}

// NewService construye el servicio. Tolerancia por defecto: 0.01.
func NewService(engine *ledger.Engine, opts ...Option) *Service {
	s := &Service{engine: engine, epsilon: decimal.New(1, -2)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckoutItem línea de caja.
type CheckoutItem struct {
	ProductID string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CheckoutInput venta; el empleado es el actor.
type CheckoutInput struct {
	BranchID string
	ClientID string
	Items    []CheckoutItem
	Cash     decimal.Decimal
	Card     decimal.Decimal
	Credit   decimal.Decimal
	Actor    entity.Actor
}

// CheckoutResult venta registrada y existencias resultantes.
type CheckoutResult struct {
	Sale   *entity.Sale
	Levels []entity.StockLevel
}

// Checkout descuenta stock, guarda la venta y suma el crédito a la deuda del cliente
// en una sola transacción.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	total, err := s.validateCheckout(in)
	if err != nil {
		return nil, err
	}

	sale := &entity.Sale{
		ID:         uuid.New().String(),
		BranchID:   in.BranchID,
		EmployeeID: in.Actor.UserID,
		ClientID:   in.ClientID,
		Items:      make([]entity.SaleItem, 0, len(in.Items)),
		Cash:       in.Cash,
		Card:       in.Card,
		Credit:     in.Credit,
		Total:      total,
	}
	events := make([]entity.LedgerEvent, 0, len(in.Items))
	for _, it := range in.Items {
		sale.Items = append(sale.Items, entity.SaleItem{
			ID:               uuid.New().String(),
			ProductID:        it.ProductID,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
			ReturnedQuantity: decimal.Zero,
		})
		events = append(events, entity.LedgerEvent{
			Kind: entity.LedgerKindSale, BranchID: in.BranchID, ProductID: it.ProductID,
			Delta: it.Quantity.Neg(), Reference: sale.ID, CreatedBy: in.Actor.UserID,
		})
	}

	var out CheckoutResult
	err = s.engine.Run(ctx, "checkout", func(tx *ledger.Tx) error {
		r := tx.Repos()
		if _, err := ledger.RequireActiveBranch(ctx, r.Catalog, in.BranchID); err != nil {
			return err
		}
		if err := ledger.RequireActiveProducts(ctx, r.Catalog, ledger.EventProducts(events)); err != nil {
			return err
		}
		if in.ClientID != "" {
			c, err := r.Clients.GetByID(ctx, in.ClientID)
			if err != nil {
				return err
			}
			if c == nil {
				return domain.ErrClientNotFound
			}
		}

		res, err := tx.Apply(ctx, events)
		if err != nil {
			return err
		}
		now := tx.Now()
		sale.CreatedAt = now
		if err := r.Sales.Create(ctx, sale); err != nil {
			return err
		}
		if sale.Credit.IsPositive() {
			if err := s.changeDebt(ctx, tx, sale.ClientID, sale.ID, entity.DebtKindSaleCredit, sale.Credit, in.Actor.UserID); err != nil {
				return err
			}
		}
		out = CheckoutResult{Sale: sale, Levels: res.LevelList()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) validateCheckout(in CheckoutInput) (decimal.Decimal, error) {
	if in.BranchID == "" {
		return decimal.Zero, domain.ErrInvalidInput
	}
	if len(in.Items) == 0 {
		return decimal.Zero, domain.ErrEmptyItems
	}
	total := decimal.Zero
	for _, it := range in.Items {
		if it.ProductID == "" {
			return decimal.Zero, domain.ErrInvalidInput
		}
		if err := domain.CheckMoney(it.UnitPrice); err != nil {
			return decimal.Zero, err
		}
		if err := domain.CheckQuantity(it.Quantity); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(it.Quantity.Mul(it.UnitPrice))
	}
	// el total se guarda en centavos
	total = total.Round(domain.MoneyScale)
	for _, m := range []decimal.Decimal{in.Cash, in.Card, in.Credit} {
		if err := domain.CheckMoney(m); err != nil {
			return decimal.Zero, err
		}
	}
	paid := in.Cash.Add(in.Card).Add(in.Credit)
	if paid.Sub(total).Abs().GreaterThan(s.epsilon) {
		return decimal.Zero, &domain.AmountMismatchError{Total: total, Paid: paid}
	}
	if in.Credit.IsPositive() && in.ClientID == "" {
		return decimal.Zero, domain.ErrClientRequired
	}
	if !in.Actor.CanActFor(in.BranchID) {
		return decimal.Zero, domain.ErrForbidden
	}
	return total, nil
}

// ReturnLine cantidad devuelta de una línea de venta.
type ReturnLine struct {
	SaleItemID string
	Quantity   decimal.Decimal
}

// ReturnInput devolución contra una venta.
type ReturnInput struct {
	SaleID string
	Items  []ReturnLine
	Actor  entity.Actor
}

// ReturnResult devolución registrada, deuda resultante y existencias.
type ReturnResult struct {
	Return *entity.SaleReturn
	Debt   *decimal.Decimal // nil si la venta no tenía crédito
	Levels []entity.StockLevel
}

// ReturnItems repone stock y descuenta de la deuda la parte proporcional al crédito,
// ambas cosas en la misma transacción.
func (s *Service) ReturnItems(ctx context.Context, in ReturnInput) (*ReturnResult, error) {
	if in.SaleID == "" {
		return nil, domain.ErrInvalidInput
	}
	if len(in.Items) == 0 {
		return nil, domain.ErrEmptyItems
	}
	requested := map[string]decimal.Decimal{}
	order := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		if it.SaleItemID == "" {
			return nil, domain.ErrInvalidInput
		}
		if err := domain.CheckQuantity(it.Quantity); err != nil {
			return nil, err
		}
		if _, seen := requested[it.SaleItemID]; !seen {
			order = append(order, it.SaleItemID)
		}
		requested[it.SaleItemID] = requested[it.SaleItemID].Add(it.Quantity)
	}

	var out ReturnResult
	err := s.engine.Run(ctx, "return_items", func(tx *ledger.Tx) error {
		r := tx.Repos()
		sale, err := r.Sales.GetForUpdate(ctx, in.SaleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return domain.ErrSaleNotFound
		}
		if !in.Actor.CanActFor(sale.BranchID) {
			return domain.ErrForbidden
		}

		ret := &entity.SaleReturn{
			ID:          uuid.New().String(),
			SaleID:      sale.ID,
			Amount:      decimal.Zero,
			ProcessedBy: in.Actor.UserID,
		}
		events := make([]entity.LedgerEvent, 0, len(order))
		for _, lineID := range order {
			line, ok := sale.ItemByID(lineID)
			if !ok {
				return fmt.Errorf("%w: la línea %s no pertenece a la venta %s", domain.ErrInvalidInput, lineID, sale.ID)
			}
			qty := requested[lineID]
			if qty.GreaterThan(line.Remaining()) {
				return &domain.OverReturnError{LineID: lineID, Requested: qty, Remaining: line.Remaining()}
			}
			amount := qty.Mul(line.UnitPrice).Round(domain.MoneyScale)
			ret.Amount = ret.Amount.Add(amount)
			ret.Lines = append(ret.Lines, entity.SaleReturnLine{
				SaleItemID: lineID, ProductID: line.ProductID, Quantity: qty, Amount: amount,
			})
			line.ReturnedQuantity = line.ReturnedQuantity.Add(qty)
			events = append(events, entity.LedgerEvent{
				Kind: entity.LedgerKindReturn, BranchID: sale.BranchID, ProductID: line.ProductID,
				Delta: qty, Reference: sale.ID, CreatedBy: in.Actor.UserID,
			})
		}

		ret.CreditRelief = decimal.Zero
		withCredit := sale.Credit.IsPositive() && sale.Total.IsPositive()
		if withCredit {
			if sale.ClientID == "" {
				return domain.ErrClientNotFound
			}
			c, err := r.Clients.GetByID(ctx, sale.ClientID)
			if err != nil {
				return err
			}
			if c == nil {
				return domain.ErrClientNotFound
			}
		}

		res, err := tx.Apply(ctx, events)
		if err != nil {
			return err
		}

		if withCredit {
			client, err := r.Clients.GetForUpdate(ctx, sale.ClientID)
			if err != nil {
				return err
			}
			if client == nil {
				return domain.ErrClientNotFound
			}
			relief := CreditRelief(ret.Amount, sale.Credit, sale.Total, client.Debt)
			ret.CreditRelief = relief
			if relief.IsPositive() {
				if err := s.changeDebt(ctx, tx, client.ID, sale.ID, entity.DebtKindReturnRelief, relief.Neg(), in.Actor.UserID); err != nil {
					return err
				}
			}
			debt := client.Debt.Sub(relief)
			out.Debt = &debt
		}

		now := tx.Now()
		ret.CreatedAt = now
		if err := r.Sales.UpdateReturnedQuantities(ctx, sale); err != nil {
			return err
		}
		if err := r.Sales.CreateReturn(ctx, ret); err != nil {
			return err
		}
		out.Return = ret
		out.Levels = res.LevelList()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreditRelief parte de una devolución que se descuenta de la deuda:
// amount * credit / total, redondeado a centavos y limitado a la deuda vigente.
func CreditRelief(amount, credit, total, debt decimal.Decimal) decimal.Decimal {
	if !credit.IsPositive() || !total.IsPositive() || !amount.IsPositive() {
		return decimal.Zero
	}
	relief := amount.Mul(credit).Div(total).Round(2)
	if relief.GreaterThan(debt) {
		relief = debt
	}
	if relief.IsNegative() {
		return decimal.Zero
	}
	return relief
}

// PayDebtInput abono a la deuda de un cliente.
type PayDebtInput struct {
	ClientID string
	Amount   decimal.Decimal
	Actor    entity.Actor
}

// PayDebt descuenta un abono de la deuda. No puede superar la deuda vigente.
func (s *Service) PayDebt(ctx context.Context, in PayDebtInput) (*entity.Client, error) {
	if in.ClientID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !in.Amount.IsPositive() {
		return nil, domain.ErrInvalidQuantity
	}
	if err := domain.CheckMoney(in.Amount); err != nil {
		return nil, err
	}
	var out *entity.Client
	err := s.engine.Run(ctx, "pay_debt", func(tx *ledger.Tx) error {
		c, err := tx.Repos().Clients.GetForUpdate(ctx, in.ClientID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrClientNotFound
		}
		if in.Amount.GreaterThan(c.Debt) {
			return fmt.Errorf("%w: abono %s, deuda %s", domain.ErrOverpayment, in.Amount, c.Debt)
		}
		if err := s.changeDebt(ctx, tx, c.ID, "", entity.DebtKindPayment, in.Amount.Neg(), in.Actor.UserID); err != nil {
			return err
		}
		c.Debt = c.Debt.Sub(in.Amount)
		c.UpdatedAt = tx.Now()
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// changeDebt bloquea al cliente, aplica delta a la deuda y deja constancia en el historial.
func (s *Service) changeDebt(ctx context.Context, tx *ledger.Tx, clientID, saleID string, kind entity.DebtKind, delta decimal.Decimal, by string) error {
	r := tx.Repos()
	c, err := r.Clients.GetForUpdate(ctx, clientID)
	if err != nil {
		return err
	}
	if c == nil {
		return domain.ErrClientNotFound
	}
	next := c.Debt.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: la deuda del cliente %s quedaría en %s", domain.ErrConflict, c.ID, next)
	}
	now := tx.Now()
	c.Debt = next
	c.UpdatedAt = now
	if err := r.Clients.UpdateDebt(ctx, c); err != nil {
		return err
	}
	return r.Debts.Append(ctx, &entity.DebtEntry{
		ID:        uuid.New().String(),
		ClientID:  c.ID,
		SaleID:    saleID,
		Kind:      kind,
		Amount:    delta,
		CreatedBy: by,
		CreatedAt: now,
	})
}

// SaleDetail venta con sus devoluciones.
type SaleDetail struct {
	Sale    *entity.Sale
	Returns []*entity.SaleReturn
}

// GetSale devuelve la venta y sus devoluciones.
func (s *Service) GetSale(ctx context.Context, id string) (*SaleDetail, error) {
	var out SaleDetail
	err := s.engine.View(ctx, func(r ledger.Repositories) error {
		sale, err := r.Sales.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if sale == nil {
			return domain.ErrSaleNotFound
		}
		out.Sale = sale
		out.Returns, err = r.Sales.ListReturns(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DebtStatement cliente con el historial de su deuda.
type DebtStatement struct {
	Client  *entity.Client
	Entries []*entity.DebtEntry
}

// ClientDebt devuelve la deuda vigente y su historial.
func (s *Service) ClientDebt(ctx context.Context, clientID string) (*DebtStatement, error) {
	clientID = strings.TrimSpace(clientID)
	var out DebtStatement
	err := s.engine.View(ctx, func(r ledger.Repositories) error {
		c, err := r.Clients.GetByID(ctx, clientID)
		if err != nil {
			return err
		}
		if c == nil {
			return domain.ErrClientNotFound
		}
		out.Client = c
		out.Entries, err = r.Debts.ListByClient(ctx, clientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
