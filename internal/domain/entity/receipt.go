package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt ingreso de mercadería a una sucursal.
type Receipt struct {
	ID          string
	BranchID    string
	Items       []ReceiptItem
	Comment     string
	CreatedBy   string
	CreatedAt   time.Time
	CancelledBy string
	CancelledAt *time.Time
}

// ReceiptItem línea de ingreso con precios de compra y venta.
type ReceiptItem struct {
	ProductID     string
	Quantity      decimal.Decimal
	PurchasePrice decimal.Decimal
	SalePrice     decimal.Decimal
}

// IsCancelled indica si el ingreso fue anulado.
func (r *Receipt) IsCancelled() bool {
	return r.CancelledAt != nil
}

// Clone copia profunda.
func (r Receipt) Clone() Receipt {
	c := r
	c.Items = append([]ReceiptItem(nil), r.Items...)
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		c.CancelledAt = &t
	}
	return c
}
