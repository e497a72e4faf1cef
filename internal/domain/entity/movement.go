package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementStatus estado de un traslado entre sucursales.
type MovementStatus string

// Estados del traslado. done y rejected son terminales.
const (
	MovementStatusWaiting  MovementStatus = "waiting"
	MovementStatusDone     MovementStatus = "done"
	MovementStatusRejected MovementStatus = "rejected"
)

// IsValid indica si el estado es conocido.
func (s MovementStatus) IsValid() bool {
	return s == MovementStatusWaiting || s == MovementStatusDone || s == MovementStatusRejected
}

// Movement representa un traslado solicitado desde FromBranchID hacia ToBranchID.
// No reserva stock: la disponibilidad se vuelve a validar al aceptar.
type Movement struct {
	ID           string
	FromBranchID string
	ToBranchID   string
	Status       MovementStatus
	Items        []MovementItem
	Comment      string
	Reason       string // motivo de rechazo
	CreatedBy    string
	ProcessedBy  string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
}

// MovementItem línea de un traslado.
type MovementItem struct {
	ProductID string
	Quantity  decimal.Decimal
}

// IsTerminal indica si el traslado ya fue procesado.
func (m *Movement) IsTerminal() bool {
	return m.Status != MovementStatusWaiting
}

// QuantitiesByProduct agrupa las cantidades por producto (un producto puede repetirse).
func (m *Movement) QuantitiesByProduct() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m.Items))
	for _, it := range m.Items {
		out[it.ProductID] = out[it.ProductID].Add(it.Quantity)
	}
	return out
}

// Clone copia profunda para que los almacenes no compartan slices.
func (m Movement) Clone() Movement {
	c := m
	c.Items = append([]MovementItem(nil), m.Items...)
	if m.ProcessedAt != nil {
		t := *m.ProcessedAt
		c.ProcessedAt = &t
	}
	return c
}
