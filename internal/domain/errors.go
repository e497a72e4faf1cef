package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")

	// Movimientos entre sucursales.
	ErrInvalidState    = errors.New("transición de estado no permitida")
	ErrInvalidBranches = errors.New("la sucursal de origen y destino deben ser distintas")
	ErrEmptyItems      = errors.New("la operación no tiene ítems")
	ErrInvalidQuantity = errors.New("la cantidad debe ser mayor que cero")
	ErrReasonRequired  = errors.New("el motivo de rechazo es obligatorio")
	ErrBranchInactive  = errors.New("la sucursal está inactiva")
	ErrProductInactive = errors.New("el producto está inactivo")

	// Ventas, devoluciones y deuda.
	ErrAmountMismatch = errors.New("el desglose de pago no coincide con el total")
	ErrOverReturn     = errors.New("la devolución supera la cantidad vendida")
	ErrClientRequired = errors.New("la venta a crédito requiere cliente")
	ErrOverpayment    = errors.New("el pago supera la deuda del cliente")

	// Contención de bloqueos: el único error que se puede reintentar tal cual.
	ErrBusy = errors.New("recurso ocupado, reintente")
)

// Recursos no encontrados; todos envuelven ErrNotFound.
var (
	ErrMovementNotFound = fmt.Errorf("movimiento: %w", ErrNotFound)
	ErrSaleNotFound     = fmt.Errorf("venta: %w", ErrNotFound)
	ErrClientNotFound   = fmt.Errorf("cliente: %w", ErrNotFound)
	ErrBranchNotFound   = fmt.Errorf("sucursal: %w", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("producto: %w", ErrNotFound)
	ErrReceiptNotFound  = fmt.Errorf("ingreso: %w", ErrNotFound)
)

// InsufficientStockError detalla el faltante de una clave (sucursal, producto).
// Requested es la salida total pedida en el lote; Available, la existencia antes del lote.
type InsufficientStockError struct {
	BranchID  string
	ProductID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente en sucursal %s para producto %s: solicitado %s, disponible solo %s",
		e.BranchID, e.ProductID, e.Requested.String(), e.Available.String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// OverReturnError indica que una línea de venta no admite la cantidad devuelta.
type OverReturnError struct {
	LineID    string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverReturnError) Error() string {
	return fmt.Sprintf("devolución excesiva en línea %s: solicitado %s, restante %s",
		e.LineID, e.Requested.String(), e.Remaining.String())
}

func (e *OverReturnError) Unwrap() error { return ErrOverReturn }

// AmountMismatchError indica que efectivo + tarjeta + crédito no suma el total.
type AmountMismatchError struct {
	Total decimal.Decimal
	Paid  decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("pago %s no coincide con total %s", e.Paid.String(), e.Total.String())
}

func (e *AmountMismatchError) Unwrap() error { return ErrAmountMismatch }

// IsRetryable indica si el comando puede reintentarse sin cambios.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}
