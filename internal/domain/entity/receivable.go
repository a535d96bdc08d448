package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la cuenta por cobrar.
const (
	ReceivableOpen      = "OPEN"
	ReceivablePaid      = "PAID"
	ReceivableCancelled = "CANCELLED"
)

// Receivable cuenta por cobrar de una venta a crédito.
// Paid ya incluye el pago que se está documentando cuando se arma el complemento.
type Receivable struct {
	ID              string
	SaleID          string
	CustomerID      string
	Total           decimal.Decimal
	Paid            decimal.Decimal
	PartialityCount int
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Balance saldo pendiente.
func (r *Receivable) Balance() decimal.Decimal { return r.Total.Sub(r.Paid) }
