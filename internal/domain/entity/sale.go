package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale representa una venta de caja. Cash + Card + Credit == Total.
type Sale struct {
	ID         string
	BranchID   string
	EmployeeID string
	ClientID   string // vacío si la venta no tiene cliente
	Items      []SaleItem
	Cash       decimal.Decimal
	Card       decimal.Decimal
	Credit     decimal.Decimal
	Total      decimal.Decimal
	CreatedAt  time.Time
}

// SaleItem línea de venta. ReturnedQuantity acumula lo devuelto contra la línea.
type SaleItem struct {
	ID               string
	ProductID        string
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	ReturnedQuantity decimal.Decimal
}

// Subtotal cantidad por precio unitario.
func (i SaleItem) Subtotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Remaining cantidad que todavía se puede devolver.
func (i SaleItem) Remaining() decimal.Decimal {
	return i.Quantity.Sub(i.ReturnedQuantity)
}

// ItemByID busca una línea por id.
func (s *Sale) ItemByID(id string) (*SaleItem, bool) {
	for i := range s.Items {
		if s.Items[i].ID == id {
			return &s.Items[i], true
		}
	}
	return nil, false
}

// Clone copia profunda.
func (s Sale) Clone() Sale {
	c := s
	c.Items = append([]SaleItem(nil), s.Items...)
	return c
}

// SaleReturn registra una devolución contra una venta.
type SaleReturn struct {
	ID           string
	SaleID       string
	Lines        []SaleReturnLine
	Amount       decimal.Decimal // Σ cantidad × precio original
	CreditRelief decimal.Decimal // parte del monto descontada de la deuda
	ProcessedBy  string
	CreatedAt    time.Time
}

// SaleReturnLine línea devuelta.
type SaleReturnLine struct {
	SaleItemID string
	ProductID  string
	Quantity   decimal.Decimal
	Amount     decimal.Decimal
}

// Clone copia profunda.
func (r SaleReturn) Clone() SaleReturn {
	c := r
	c.Lines = append([]SaleReturnLine(nil), r.Lines...)
	return c
}
