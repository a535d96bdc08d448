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

// PaymentInput todo lo que necesita el complemento de pago.
type PaymentInput struct {
	Receivable  *entity.Receivable
	Sale        entity.HasFiscalReference
	Invoice     *entity.FiscalDocument // factura PPD timbrada de la venta
	Customer    *entity.Customer
	Amount      decimal.Decimal
	PaymentForm sat.PaymentForm
	PaymentDate time.Time
	Partiality  int // complementos previos + 1
	Series      string
	Folio       string
	IssuedAt    time.Time
}

// PaymentBuilder arma el CFDI tipo P con complemento de recepción de pagos 2.0.
type PaymentBuilder struct {
	issuer entity.IssuerProfile
}

// NewPaymentBuilder recibe el perfil fiscal propio.
func NewPaymentBuilder(issuer entity.IssuerProfile) *PaymentBuilder {
	return &PaymentBuilder{issuer: issuer}
}

// Build calcula saldo anterior, saldo insoluto e impuesto proporcional al pago.
// El encabezado queda en cero; los importes reales viajan en el complemento.
func (b *PaymentBuilder) Build(in PaymentInput) (*entity.FiscalDocument, error) {
	if err := domcfdi.ValidateIssuer(b.issuer); err != nil {
		return nil, fmt.Errorf("armar pago: %w", err)
	}
	if err := domcfdi.ValidateRecipient(in.Customer); err != nil {
		return nil, fmt.Errorf("armar pago: %w", err)
	}
	if in.Invoice == nil || in.Invoice.UUID == "" || in.Invoice.Status != entity.StatusStamped ||
		in.Invoice.PaymentMethod != sat.PaymentMethodDeferred {
		return nil, domain.NewFiscalError("armar pago", domain.ErrReferenceMissing, "la venta no tiene factura PPD timbrada")
	}
	if in.Receivable == nil || in.Sale == nil {
		return nil, domain.NewFiscalError("armar pago", domain.ErrInvalidInput, "falta la cuenta por cobrar o la venta")
	}
	if !in.Amount.IsPositive() {
		return nil, domain.NewFiscalError("armar pago", domain.ErrInvalidInput, "el monto del pago debe ser mayor a cero")
	}
	if _, err := sat.ParsePaymentForm(string(in.PaymentForm)); err != nil || in.PaymentForm == sat.PaymentFormToBeDefined {
		return nil, domain.NewFiscalError("armar pago", domain.ErrLocalRuleViolation,
			fmt.Sprintf("forma de pago %q no válida para un complemento", in.PaymentForm))
	}
	if in.Partiality < 1 {
		return nil, domain.NewFiscalError("armar pago", domain.ErrInvalidInput, "número de parcialidad inválido")
	}

	amount := domcfdi.Round2(in.Amount)
	prior := domcfdi.Round2(in.Receivable.Total.Sub(in.Receivable.Paid).Add(amount))
	remaining := prior.Sub(amount)

	related := entity.RelatedPayment{
		DocumentUUID:     in.Invoice.UUID,
		Series:           in.Invoice.Series,
		Folio:            in.Invoice.Folio,
		Currency:         currencyOf(in.Invoice),
		Partiality:       in.Partiality,
		PriorBalance:     prior,
		AmountPaid:       amount,
		RemainingBalance: remaining,
		TaxObject:        sat.TaxObjectNotApplicable,
	}
	if in.Sale.FiscalTax().IsPositive() {
		base, tax, err := domcfdi.ProportionalTax(amount, in.Sale.FiscalTotal(),
			in.Sale.FiscalSubtotal().Sub(in.Sale.FiscalDiscount()), in.Sale.FiscalTax())
		if err != nil {
			return nil, err
		}
		related.TaxObject = sat.TaxObjectTaxable
		related.TaxBase = base
		related.TaxAmount = tax
		related.TaxRate = invoiceRate(in.Invoice)
	}

	issuedAt := in.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	return &entity.FiscalDocument{
		SaleID:       in.Invoice.SaleID,
		ReceivableID: in.Receivable.ID,
		Kind:         sat.KindPayment,
		Direction:    entity.DirectionIssued,
		Series:       in.Series,
		Folio:        in.Folio,
		IssuedAt:     issuedAt.Truncate(time.Second),
		Currency:     sat.CurrencyNone,
		ExchangeRate: decimal.NewFromInt(1),
		CFDIUse:      sat.UsePayments,
		ExportCode:   sat.ExportNotApplies,
		Status:       entity.StatusDraft,
		Issuer:       issuerParty(b.issuer),
		Receiver:     receiverParty(in.Customer),
		Concepts: []*entity.Concept{{
			ProductKey:  sat.ProductKeyPayment,
			UnitKey:     sat.UnitKeyActivity,
			Description: "Pago",
			Quantity:    decimal.NewFromInt(1),
			TaxObject:   sat.TaxObjectNotApplicable,
		}},
		Payment: &entity.PaymentComplement{
			PaymentDate: in.PaymentDate,
			PaymentForm: in.PaymentForm,
			Currency:    sat.CurrencyMXN,
			Amount:      amount,
			Related:     []entity.RelatedPayment{related},
		},
	}, nil
}

// invoiceRate tasa de IVA con la que se timbró la factura.
func invoiceRate(inv *entity.FiscalDocument) decimal.Decimal {
	for _, t := range inv.Taxes.Transferred {
		if t.Tax == sat.TaxIVA && t.FactorType == sat.FactorRate {
			return t.Rate
		}
	}
	return decimal.New(16, -2)
}

func currencyOf(d *entity.FiscalDocument) string {
	if d.Currency == "" {
		return sat.CurrencyMXN
	}
	return d.Currency
}
