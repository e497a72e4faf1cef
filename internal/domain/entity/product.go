package entity

import "github.com/shopspring/decimal"

// Product producto del catálogo. El libro solo lo referencia.
type Product struct {
	ID           string
	Name         string
	Unit         string          // unidad de medida (pcs, kg, m)
	ReorderLimit decimal.Decimal // límite de reposición
	Active       bool
}
