package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// Estados de la venta en el punto de venta.
const (
	SaleStatusActive    = "ACTIVE"
	SaleStatusCancelled = "CANCELLED"
)

// HasFiscalReference es lo que cualquier operación facturable (venta, pedido, anticipo)
// debe exponer para que se le pueda emitir un CFDI.
type HasFiscalReference interface {
	FiscalReferenceID() string
	CounterpartyID() string
	FiscalSubtotal() decimal.Decimal
	FiscalDiscount() decimal.Decimal
	FiscalTax() decimal.Decimal
	FiscalTotal() decimal.Decimal
	FiscalLines() []SaleLine
	FiscalTerms() FiscalTerms
}

// FiscalTerms condiciones de cobro e impuestos de la operación.
type FiscalTerms struct {
	Method             string
	PaymentMethod      sat.PaymentMethod
	PaymentForm        sat.PaymentForm
	IsCredit           bool
	Currency           string
	ExchangeRate       decimal.Decimal
	TaxRate            decimal.Decimal
	RetainedVATRate    decimal.Decimal
	RetainedIncomeRate decimal.Decimal
}

// Sale venta registrada por la capa de operación. El motor solo la lee.
type Sale struct {
	ID                 string
	CustomerID         string
	Status             string
	Method             string            // método de cobro interno: cash, transfer, card, credit...
	PaymentMethod      sat.PaymentMethod // explícito; vacío = se deduce de IsCredit
	PaymentForm        sat.PaymentForm   // explícito; vacío = se deduce de Method
	IsCredit           bool
	Currency           string
	ExchangeRate       decimal.Decimal
	TaxRate            decimal.Decimal // tasa de IVA; cero = usar la del emisor
	RetainedVATRate    decimal.Decimal
	RetainedIncomeRate decimal.Decimal
	Subtotal           decimal.Decimal
	Discount           decimal.Decimal // descuento global del ticket
	Tax                decimal.Decimal
	Total              decimal.Decimal
	Lines              []SaleLine
	Date               time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SaleLine renglón de la venta.
type SaleLine struct {
	ProductID   string
	SKU         string
	Description string
	ProductKey  string // ClaveProdServ configurada en el producto
	UnitKey     string // ClaveUnidad configurada en el producto
	UnitName    string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	TaxObject   sat.TaxObject
}

var _ HasFiscalReference = (*Sale)(nil)

func (s *Sale) FiscalReferenceID() string       { return s.ID }
func (s *Sale) CounterpartyID() string          { return s.CustomerID }
func (s *Sale) FiscalSubtotal() decimal.Decimal { return s.Subtotal }
func (s *Sale) FiscalDiscount() decimal.Decimal { return s.Discount }
func (s *Sale) FiscalTax() decimal.Decimal      { return s.Tax }
func (s *Sale) FiscalTotal() decimal.Decimal    { return s.Total }
func (s *Sale) FiscalLines() []SaleLine         { return s.Lines }

func (s *Sale) FiscalTerms() FiscalTerms {
	return FiscalTerms{
		Method:             s.Method,
		PaymentMethod:      s.PaymentMethod,
		PaymentForm:        s.PaymentForm,
		IsCredit:           s.IsCredit,
		Currency:           s.Currency,
		ExchangeRate:       s.ExchangeRate,
		TaxRate:            s.TaxRate,
		RetainedVATRate:    s.RetainedVATRate,
		RetainedIncomeRate: s.RetainedIncomeRate,
	}
}

// IsCancelled indica si la venta ya fue cancelada.
func (s *Sale) IsCancelled() bool { return s.Status == SaleStatusCancelled }
