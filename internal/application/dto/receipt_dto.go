package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ReceiptItemRequest línea de ingreso.
type ReceiptItemRequest struct {
	ProductID     string          `json:"product_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
}

// CreateReceiptRequest body para POST /api/receipts.
type CreateReceiptRequest struct {
	BranchID string               `json:"branch_id" validate:"required"`
	Items    []ReceiptItemRequest `json:"items" validate:"required,min=1,dive"`
	Comment  string               `json:"comment" validate:"max=500"`
}

// ReceiptItemResponse línea de ingreso.
type ReceiptItemResponse struct {
	ProductID     string          `json:"product_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SalePrice     decimal.Decimal `json:"sale_price"`
}

// ReceiptResponse ingreso de mercadería.
type ReceiptResponse struct {
	ID          string                `json:"id"`
	BranchID    string                `json:"branch_id"`
	Items       []ReceiptItemResponse `json:"items"`
	Comment     string                `json:"comment,omitempty"`
	CreatedBy   string                `json:"created_by"`
	CreatedAt   time.Time             `json:"created_at"`
	CancelledBy string                `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time            `json:"cancelled_at,omitempty"`
	Levels      []StockLevelResponse  `json:"levels,omitempty"`
}

// ToItems convierte las líneas del request.
func (r CreateReceiptRequest) ToItems() []entity.ReceiptItem {
	out := make([]entity.ReceiptItem, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, entity.ReceiptItem{
			ProductID: it.ProductID, Quantity: it.Quantity, PurchasePrice: it.PurchasePrice, SalePrice: it.SalePrice,
		})
	}
	return out
}

// ReceiptFromEntity mapea un ingreso; levels puede ser nil.
func ReceiptFromEntity(rc *entity.Receipt, levels []entity.StockLevel) ReceiptResponse {
	items := make([]ReceiptItemResponse, 0, len(rc.Items))
	for _, it := range rc.Items {
		items = append(items, ReceiptItemResponse(it))
	}
	out := ReceiptResponse{
		ID: rc.ID, BranchID: rc.BranchID, Items: items, Comment: rc.Comment,
		CreatedBy: rc.CreatedBy, CreatedAt: rc.CreatedAt,
		CancelledBy: rc.CancelledBy, CancelledAt: rc.CancelledAt,
	}
	if levels != nil {
		out.Levels = StockLevels(levels)
	}
	return out
}
