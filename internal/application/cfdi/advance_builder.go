package cfdi

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	domcfdi "github.com/jhoicas/cfdi-engine/internal/domain/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

const advanceDescription = "Anticipo del bien o servicio"

// AdvanceInput anticipo recibido de un cliente.
type AdvanceInput struct {
	SaleID      string // opcional
	Customer    *entity.Customer
	Amount      decimal.Decimal // con IVA incluido
	TaxRate     decimal.Decimal // cero = la del emisor
	PaymentForm sat.PaymentForm
	Series      string
	Folio       string
	IssuedAt    time.Time
}

// AdvanceBuilder arma el CFDI de ingreso por anticipo: un solo concepto 84111506/ACT,
// pagado en una exhibición, con la base calculada a partir del monto con IVA.
type AdvanceBuilder struct {
	issuer entity.IssuerProfile
}

// NewAdvanceBuilder recibe el perfil fiscal propio.
func NewAdvanceBuilder(issuer entity.IssuerProfile) *AdvanceBuilder {
	return &AdvanceBuilder{issuer: issuer}
}

// Build base = monto / (1 + tasa); el IVA es la diferencia para que el total sea exactamente el monto.
func (b *AdvanceBuilder) Build(in AdvanceInput) (*entity.FiscalDocument, error) {
	if err := domcfdi.ValidateIssuer(b.issuer); err != nil {
		return nil, fmt.Errorf("armar anticipo: %w", err)
	}
	if err := domcfdi.ValidateRecipient(in.Customer); err != nil {
		return nil, fmt.Errorf("armar anticipo: %w", err)
	}
	if !in.Amount.IsPositive() {
		return nil, domain.NewFiscalError("armar anticipo", domain.ErrInvalidInput, "el monto del anticipo debe ser mayor a cero")
	}
	form := in.PaymentForm
	if form == "" {
		form = sat.PaymentFormCash
	}
	if _, err := sat.ParsePaymentForm(string(form)); err != nil {
		return nil, domain.NewFiscalError("armar anticipo", domain.ErrInvalidInput, err.Error())
	}
	rate := in.TaxRate
	if !rate.IsPositive() {
		rate = b.issuer.DefaultTaxRate
	}
	if rate.IsNegative() {
		return nil, domain.NewFiscalError("armar anticipo", domain.ErrInvalidInput, "tasa negativa")
	}

	amount := domcfdi.Round2(in.Amount)
	base := domcfdi.Round2(amount.Div(decimal.NewFromInt(1).Add(rate)))

	// Misma ruta que las facturas con partidas: una sola línea sin descuentos.
	alloc, err := domcfdi.Allocate([]domcfdi.LineInput{{Gross: base, TaxObject: sat.TaxObjectTaxable}}, decimal.Zero, rate)
	if err != nil {
		return nil, err
	}
	tax := amount.Sub(base)
	if tax.Sub(alloc.Totals.Tax).Abs().GreaterThan(domcfdi.Tolerance) {
		return nil, domain.NewFiscalError("armar anticipo", domain.ErrLocalRuleViolation,
			fmt.Sprintf("IVA %s no corresponde a base %s", tax.StringFixed(2), base.StringFixed(2)))
	}

	issuedAt := in.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	doc := &entity.FiscalDocument{
		SaleID:         in.SaleID,
		Kind:           sat.KindIncome,
		Direction:      entity.DirectionIssued,
		IsAdvance:      true,
		Series:         in.Series,
		Folio:          in.Folio,
		IssuedAt:       issuedAt.Truncate(time.Second),
		Currency:       sat.CurrencyMXN,
		ExchangeRate:   decimal.NewFromInt(1),
		Subtotal:       base,
		TaxTransferred: tax,
		Total:          amount,
		PaymentMethod:  sat.PaymentMethodSingle,
		PaymentForm:    form,
		CFDIUse:        in.Customer.CFDIUse,
		ExportCode:     sat.ExportNotApplies,
		Status:         entity.StatusDraft,
		Issuer:         issuerParty(b.issuer),
		Receiver:       receiverParty(in.Customer),
		Concepts: []*entity.Concept{{
			ProductKey:  sat.ProductKeyPayment,
			UnitKey:     sat.UnitKeyActivity,
			Description: advanceDescription,
			Quantity:    decimal.NewFromInt(1),
			UnitValue:   base,
			Amount:      base,
			TaxObject:   sat.TaxObjectTaxable,
			TaxBase:     base,
			TaxRate:     rate,
			TaxAmount:   tax,
		}},
	}
	doc.Taxes.Transferred = []entity.TaxLine{{
		Tax: sat.TaxIVA, FactorType: sat.FactorRate, Rate: rate, Base: base, Amount: tax,
	}}
	return doc, nil
}
