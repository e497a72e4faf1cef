package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockLevelResponse existencia de un producto en una sucursal.
type StockLevelResponse struct {
	BranchID  string          `json:"branch_id"`
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

// LedgerEventResponse evento del libro.
type LedgerEventResponse struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	Kind      string          `json:"kind"`
	BranchID  string          `json:"branch_id"`
	ProductID string          `json:"product_id"`
	Delta     decimal.Decimal `json:"delta"`
	Reference string          `json:"reference,omitempty"`
	CreatedBy string          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventListResponse página de eventos.
type EventListResponse struct {
	Items []LedgerEventResponse `json:"items"`
	Page  PageResponse          `json:"page"`
}

// EventQuery filtros de GET /api/ledger/events.
type EventQuery struct {
	Limit     int    `query:"limit" validate:"min=0,max=500"`
	Offset    int    `query:"offset" validate:"min=0"`
	BranchID  string `query:"branch_id"`
	ProductID string `query:"product_id"`
	Kind      string `query:"kind" validate:"omitempty,oneof=RECEIPT RECEIPT_REVERT SALE RETURN TRANSFER_OUT TRANSFER_IN TRANSFER_REVERT"`
	Reference string `query:"reference"`
}

// DiscrepancyResponse diferencia entre existencia y suma del libro.
type DiscrepancyResponse struct {
	BranchID  string          `json:"branch_id"`
	ProductID string          `json:"product_id"`
	Level     decimal.Decimal `json:"level"`
	EventSum  decimal.Decimal `json:"event_sum"`
}

// ReconcileResponse resultado de la conciliación.
type ReconcileResponse struct {
	Consistent    bool                  `json:"consistent"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
}

// StockLevelFromEntity mapea una existencia.
func StockLevelFromEntity(l entity.StockLevel) StockLevelResponse {
	return StockLevelResponse{BranchID: l.BranchID, ProductID: l.ProductID, Quantity: l.Quantity, UpdatedAt: l.UpdatedAt}
}

// StockLevels mapea una lista de existencias.
func StockLevels(levels []entity.StockLevel) []StockLevelResponse {
	out := make([]StockLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, StockLevelFromEntity(l))
	}
	return out
}

// LedgerEventFromEntity mapea un evento.
func LedgerEventFromEntity(e *entity.LedgerEvent) LedgerEventResponse {
	return LedgerEventResponse{
		ID: e.ID, Seq: e.Seq, Kind: string(e.Kind), BranchID: e.BranchID, ProductID: e.ProductID,
		Delta: e.Delta, Reference: e.Reference, CreatedBy: e.CreatedBy, CreatedAt: e.CreatedAt,
	}
}

// ReplenishmentItemResponse sugerencia de reposición para un producto.
type ReplenishmentItemResponse struct {
	Priority     int             `json:"priority"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit,omitempty"`
	Current      decimal.Decimal `json:"current"`
	ReorderLimit decimal.Decimal `json:"reorder_limit"`
	IdealStock   decimal.Decimal `json:"ideal_stock"`
	SuggestedQty decimal.Decimal `json:"suggested_qty"`
}
