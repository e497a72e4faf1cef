package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client cliente con saldo deudor (ventas a crédito).
type Client struct {
	ID        string
	Name      string
	Phone     string
	Debt      decimal.Decimal // nunca negativo
	UpdatedAt time.Time
}

// DebtKind origen de un cambio de deuda.
type DebtKind string

// Orígenes de deuda.
const (
	DebtKindSaleCredit   DebtKind = "sale_credit"
	DebtKindReturnRelief DebtKind = "return_relief"
	DebtKindPayment      DebtKind = "payment"
)

// DebtEntry historial de deuda: la suma de Amount por cliente es su deuda.
type DebtEntry struct {
	ID        string
	ClientID  string
	SaleID    string
	Kind      DebtKind
	Amount    decimal.Decimal // positivo aumenta, negativo disminuye
	CreatedBy string
	CreatedAt time.Time
}
