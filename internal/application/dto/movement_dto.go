package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementItemRequest línea de traslado.
type MovementItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// CreateMovementRequest body para POST /api/movements.
type CreateMovementRequest struct {
	FromBranchID string                `json:"from_branch_id" validate:"required"`
	ToBranchID   string                `json:"to_branch_id" validate:"required"`
	Items        []MovementItemRequest `json:"items" validate:"required,min=1,dive"`
	Comment      string                `json:"comment" validate:"max=500"`
}

// RejectMovementRequest body para POST /api/movements/:id/reject.
type RejectMovementRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// MovementQuery filtros de GET /api/movements.
type MovementQuery struct {
	Limit    int    `query:"limit" validate:"min=0,max=500"`
	Offset   int    `query:"offset" validate:"min=0"`
	Status   string `query:"status" validate:"omitempty,oneof=waiting done rejected"`
	BranchID string `query:"branch_id"`
}

// MovementItemResponse línea de traslado.
type MovementItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// MovementResponse traslado entre sucursales.
type MovementResponse struct {
	ID           string                 `json:"id"`
	FromBranchID string                 `json:"from_branch_id"`
	ToBranchID   string                 `json:"to_branch_id"`
	Status       string                 `json:"status"`
	Items        []MovementItemResponse `json:"items"`
	Comment      string                 `json:"comment,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	CreatedBy    string                 `json:"created_by"`
	ProcessedBy  string                 `json:"processed_by,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	ProcessedAt  *time.Time             `json:"processed_at,omitempty"`
	Levels       []StockLevelResponse   `json:"levels,omitempty"`
}

// ToItems convierte las líneas del request.
func (r CreateMovementRequest) ToItems() []entity.MovementItem {
	out := make([]entity.MovementItem, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, entity.MovementItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

// MovementFromEntity mapea un traslado; levels puede ser nil.
func MovementFromEntity(m *entity.Movement, levels []entity.StockLevel) MovementResponse {
	items := make([]MovementItemResponse, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, MovementItemResponse(it))
	}
	out := MovementResponse{
		ID: m.ID, FromBranchID: m.FromBranchID, ToBranchID: m.ToBranchID, Status: string(m.Status),
		Items: items, Comment: m.Comment, Reason: m.Reason, CreatedBy: m.CreatedBy,
		ProcessedBy: m.ProcessedBy, CreatedAt: m.CreatedAt, ProcessedAt: m.ProcessedAt,
	}
	if levels != nil {
		out.Levels = StockLevels(levels)
	}
	return out
}
