package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEventKind tipo de evento del libro de existencias.
type LedgerEventKind string

// Tipos de evento.
const (
	LedgerKindReceipt        LedgerEventKind = "RECEIPT"         // ingreso de compra
	LedgerKindReceiptRevert  LedgerEventKind = "RECEIPT_REVERT"  // anulación de ingreso
	LedgerKindSale           LedgerEventKind = "SALE"            // venta en caja
	LedgerKindReturn         LedgerEventKind = "RETURN"          // devolución de cliente
	LedgerKindTransferOut    LedgerEventKind = "TRANSFER_OUT"    // salida por traslado
	LedgerKindTransferIn     LedgerEventKind = "TRANSFER_IN"     // entrada por traslado
	LedgerKindTransferRevert LedgerEventKind = "TRANSFER_REVERT" // reversión de traslado (ambos signos)
)

// IsValid indica si el tipo es conocido.
func (k LedgerEventKind) IsValid() bool {
	switch k {
	case LedgerKindReceipt, LedgerKindReceiptRevert, LedgerKindSale, LedgerKindReturn,
		LedgerKindTransferOut, LedgerKindTransferIn, LedgerKindTransferRevert:
		return true
	}
	return false
}

// AllowsDelta valida el signo del delta según el tipo. Delta cero nunca es válido.
func (k LedgerEventKind) AllowsDelta(delta decimal.Decimal) bool {
	if delta.IsZero() {
		return false
	}
	switch k {
	case LedgerKindReceipt, LedgerKindReturn, LedgerKindTransferIn:
		return delta.IsPositive()
	case LedgerKindReceiptRevert, LedgerKindSale, LedgerKindTransferOut:
		return delta.IsNegative()
	case LedgerKindTransferRevert:
		return true
	}
	return false
}

// LedgerEvent es un ajuste inmutable de cantidad ligado a un hecho de negocio.
// La suma de Delta por clave reconstruye la existencia de esa clave.
type LedgerEvent struct {
	ID        string
	Seq       int64 // asignado por el almacenamiento al confirmar
	Kind      LedgerEventKind
	BranchID  string
	ProductID string
	Delta     decimal.Decimal // positivo entrada, negativo salida
	Reference string          // id de venta, traslado o ingreso
	CreatedBy string
	CreatedAt time.Time
}

// Key devuelve la clave de existencias afectada.
func (e LedgerEvent) Key() StockKey {
	return StockKey{BranchID: e.BranchID, ProductID: e.ProductID}
}
