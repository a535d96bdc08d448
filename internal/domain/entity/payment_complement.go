package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// PaymentComplement complemento de recepción de pagos (pago20:Pagos) con un solo pago.
type PaymentComplement struct {
	PaymentDate time.Time
	PaymentForm sat.PaymentForm
	Currency    string
	Amount      decimal.Decimal
	Related     []RelatedPayment
}

// RelatedPayment nodo DoctoRelacionado: la factura PPD que se está pagando.
type RelatedPayment struct {
	DocumentUUID     string
	Series           string
	Folio            string
	Currency         string
	Partiality       int
	PriorBalance     decimal.Decimal
	AmountPaid       decimal.Decimal
	RemainingBalance decimal.Decimal
	TaxObject        sat.TaxObject
	TaxBase          decimal.Decimal
	TaxRate          decimal.Decimal
	TaxAmount        decimal.Decimal
}
