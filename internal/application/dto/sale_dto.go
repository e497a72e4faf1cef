package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// CheckoutItemRequest línea de caja.
type CheckoutItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CheckoutRequest body para POST /api/sales. El empleado sale del token.
type CheckoutRequest struct {
	BranchID string                `json:"branch_id" validate:"required"`
	ClientID string                `json:"client_id"`
	Items    []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Cash     decimal.Decimal       `json:"cash"`
	Card     decimal.Decimal       `json:"card"`
	Credit   decimal.Decimal       `json:"credit"`
}

// ReturnLineRequest cantidad devuelta de una línea de venta.
type ReturnLineRequest struct {
	SaleItemID string          `json:"sale_item_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// ReturnRequest body para POST /api/sales/:id/returns.
type ReturnRequest struct {
	Items []ReturnLineRequest `json:"items" validate:"required,min=1,dive"`
}

// PayDebtRequest body para POST /api/clients/:id/payments.
type PayDebtRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// SaleItemResponse línea de venta.
type SaleItemResponse struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
}

// SaleReturnLineResponse línea devuelta.
type SaleReturnLineResponse struct {
	SaleItemID string          `json:"sale_item_id"`
	ProductID  string          `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Amount     decimal.Decimal `json:"amount"`
}

// SaleReturnResponse devolución.
type SaleReturnResponse struct {
	ID           string                   `json:"id"`
	SaleID       string                   `json:"sale_id"`
	Lines        []SaleReturnLineResponse `json:"lines"`
	Amount       decimal.Decimal          `json:"amount"`
	CreditRelief decimal.Decimal          `json:"credit_relief"`
	ProcessedBy  string                   `json:"processed_by"`
	CreatedAt    time.Time                `json:"created_at"`
	Debt         *decimal.Decimal         `json:"client_debt,omitempty"`
	Levels       []StockLevelResponse     `json:"levels,omitempty"`
}

// SaleResponse venta con sus devoluciones (si se piden).
type SaleResponse struct {
	ID         string               `json:"id"`
	BranchID   string               `json:"branch_id"`
	EmployeeID string               `json:"employee_id"`
	ClientID   string               `json:"client_id,omitempty"`
	Items      []SaleItemResponse   `json:"items"`
	Cash       decimal.Decimal      `json:"cash"`
	Card       decimal.Decimal      `json:"card"`
	Credit     decimal.Decimal      `json:"credit"`
	Total      decimal.Decimal      `json:"total"`
	CreatedAt  time.Time            `json:"created_at"`
	Returns    []SaleReturnResponse `json:"returns,omitempty"`
	Levels     []StockLevelResponse `json:"levels,omitempty"`
}

// DebtEntryResponse movimiento de deuda.
type DebtEntryResponse struct {
	ID        string          `json:"id"`
	SaleID    string          `json:"sale_id,omitempty"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedBy string          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ClientDebtResponse deuda vigente e historial.
type ClientDebtResponse struct {
	ClientID string              `json:"client_id"`
	Name     string              `json:"name"`
	Debt     decimal.Decimal     `json:"debt"`
	Entries  []DebtEntryResponse `json:"entries,omitempty"`
}

// SaleFromEntity mapea una venta.
func SaleFromEntity(s *entity.Sale, returns []*entity.SaleReturn, levels []entity.StockLevel) SaleResponse {
	items := make([]SaleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, SaleItemResponse(it))
	}
	out := SaleResponse{
		ID: s.ID, BranchID: s.BranchID, EmployeeID: s.EmployeeID, ClientID: s.ClientID, Items: items,
		Cash: s.Cash, Card: s.Card, Credit: s.Credit, Total: s.Total, CreatedAt: s.CreatedAt,
	}
	for _, r := range returns {
		out.Returns = append(out.Returns, SaleReturnFromEntity(r, nil, nil))
	}
	if levels != nil {
		out.Levels = StockLevels(levels)
	}
	return out
}

// SaleReturnFromEntity mapea una devolución.
func SaleReturnFromEntity(r *entity.SaleReturn, debt *decimal.Decimal, levels []entity.StockLevel) SaleReturnResponse {
	lines := make([]SaleReturnLineResponse, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, SaleReturnLineResponse(l))
	}
	out := SaleReturnResponse{
		ID: r.ID, SaleID: r.SaleID, Lines: lines, Amount: r.Amount, CreditRelief: r.CreditRelief,
		ProcessedBy: r.ProcessedBy, CreatedAt: r.CreatedAt, Debt: debt,
	}
	if levels != nil {
		out.Levels = StockLevels(levels)
	}
	return out
}

// ClientDebtFromEntity mapea la deuda de un cliente con su historial.
func ClientDebtFromEntity(c *entity.Client, entries []*entity.DebtEntry) ClientDebtResponse {
	out := ClientDebtResponse{ClientID: c.ID, Name: c.Name, Debt: c.Debt}
	for _, e := range entries {
		out.Entries = append(out.Entries, DebtEntryResponse{
			ID: e.ID, SaleID: e.SaleID, Kind: string(e.Kind), Amount: e.Amount, CreatedBy: e.CreatedBy, CreatedAt: e.CreatedAt,
		})
	}
	return out
}
