package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Escalas de almacenamiento: cantidades NUMERIC(18,4), dinero NUMERIC(18,2).
const (
	QuantityScale int32 = 4
	MoneyScale    int32 = 2
)

// FitsScale indica si d no tiene más decimales que places.
func FitsScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}

// CheckQuantity exige cantidad positiva con a lo sumo QuantityScale decimales.
func CheckQuantity(q decimal.Decimal) error {
	if !q.IsPositive() {
		return ErrInvalidQuantity
	}
	if !FitsScale(q, QuantityScale) {
		return fmt.Errorf("%w: %s tiene más de %d decimales", ErrInvalidQuantity, q, QuantityScale)
	}
	return nil
}

// CheckMoney exige un monto no negativo con a lo sumo MoneyScale decimales.
func CheckMoney(m decimal.Decimal) error {
	if m.IsNegative() {
		return fmt.Errorf("%w: monto negativo %s", ErrInvalidInput, m)
	}
	if !FitsScale(m, MoneyScale) {
		return fmt.Errorf("%w: el monto %s tiene más de %d decimales", ErrInvalidInput, m, MoneyScale)
	}
	return nil
}
