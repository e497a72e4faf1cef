package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifica una fila de existencias: (sucursal, producto).
type StockKey struct {
	BranchID  string
	ProductID string
}

// Less define el orden global de bloqueo: ascendente por sucursal y luego por producto.
func (k StockKey) Less(other StockKey) bool {
	if k.BranchID != other.BranchID {
		return k.BranchID < other.BranchID
	}
	return k.ProductID < other.ProductID
}

func (k StockKey) String() string {
	return k.BranchID + "/" + k.ProductID
}

// StockLevel representa la existencia de un producto en una sucursal.
// Se crea al primer movimiento y nunca se borra; como mucho queda en cero.
type StockLevel struct {
	BranchID  string
	ProductID string
	Quantity  decimal.Decimal // nunca negativa tras un commit
	UpdatedAt time.Time
}

// Key devuelve la clave de la fila.
func (s StockLevel) Key() StockKey {
	return StockKey{BranchID: s.BranchID, ProductID: s.ProductID}
}
