// Package cfdi orquesta la emisión, cancelación e importación de CFDI.
package cfdi

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	domcfdi "github.com/jhoicas/cfdi-engine/internal/domain/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

const defaultUnitName = "Pieza"

// BuildOptions datos del comprobante que no vienen de la venta.
type BuildOptions struct {
	Series   string
	Folio    string
	IssuedAt time.Time
	CFDIUse  string // sustituye el uso configurado en el cliente
	Relation *entity.DocumentRelation
}

// DocumentBuilder arma el borrador de un CFDI de ingreso a partir de una operación facturable.
type DocumentBuilder struct {
	issuer entity.IssuerProfile
}

// NewDocumentBuilder recibe el perfil fiscal propio.
func NewDocumentBuilder(issuer entity.IssuerProfile) *DocumentBuilder {
	return &DocumentBuilder{issuer: issuer}
}

// Build resuelve emisor y receptor, método y forma de pago, distribuye descuentos e
// impuestos por línea y deja el encabezado cuadrado.
func (b *DocumentBuilder) Build(ref entity.HasFiscalReference, customer *entity.Customer, opts BuildOptions) (*entity.FiscalDocument, error) {
	if err := domcfdi.ValidateIssuer(b.issuer); err != nil {
		return nil, fmt.Errorf("armar comprobante: %w", err)
	}
	if err := domcfdi.ValidateRecipient(customer); err != nil {
		return nil, fmt.Errorf("armar comprobante: %w", err)
	}
	lines := ref.FiscalLines()
	if len(lines) == 0 {
		return nil, domain.NewFiscalError("armar comprobante", domain.ErrInvalidInput, "la operación no tiene partidas")
	}

	terms := ref.FiscalTerms()
	rate := terms.TaxRate
	if !rate.IsPositive() {
		rate = b.issuer.DefaultTaxRate
	}
	method, form, err := resolvePayment(terms)
	if err != nil {
		return nil, err
	}

	inputs := make([]domcfdi.LineInput, len(lines))
	for i, l := range lines {
		obj := l.TaxObject
		if obj == "" {
			obj = sat.TaxObjectTaxable
		}
		inputs[i] = domcfdi.LineInput{
			Gross:        domcfdi.Round2(l.Quantity.Mul(l.UnitPrice)),
			ItemDiscount: l.Discount,
			TaxObject:    obj,
		}
	}
	alloc, err := domcfdi.Allocate(inputs, ref.FiscalDiscount(), rate)
	if err != nil {
		return nil, err
	}

	use := opts.CFDIUse
	if use == "" {
		use = customer.CFDIUse
	}
	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	currency := terms.Currency
	if currency == "" {
		currency = sat.CurrencyMXN
	}
	exchange := terms.ExchangeRate
	if currency == sat.CurrencyMXN || !exchange.IsPositive() {
		exchange = decimal.NewFromInt(1)
	}

	doc := &entity.FiscalDocument{
		SaleID:        ref.FiscalReferenceID(),
		Kind:          sat.KindIncome,
		Direction:     entity.DirectionIssued,
		Series:        opts.Series,
		Folio:         opts.Folio,
		IssuedAt:      issuedAt.Truncate(time.Second),
		Currency:      currency,
		ExchangeRate:  exchange,
		PaymentMethod: method,
		PaymentForm:   form,
		CFDIUse:       use,
		ExportCode:    sat.ExportNotApplies,
		Status:        entity.StatusDraft,
		Issuer:        issuerParty(b.issuer),
		Receiver:      receiverParty(customer),
		Relation:      relation(opts.Relation),
	}

	var retainedVAT, retainedISR decimal.Decimal
	for i, l := range lines {
		la := alloc.Lines[i]
		c := &entity.Concept{
			ProductKey:  orDefault(l.ProductKey, sat.ProductKeyGeneric),
			UnitKey:     orDefault(l.UnitKey, sat.UnitKeyPiece),
			UnitName:    orDefault(l.UnitName, defaultUnitName),
			SKU:         l.SKU,
			Description: orDefault(strings.TrimSpace(l.Description), l.SKU),
			Quantity:    l.Quantity,
			UnitValue:   l.UnitPrice,
			Amount:      inputs[i].Gross,
			Discount:    la.Discount,
			TaxObject:   la.TaxObject,
		}
		if la.TaxObject != sat.TaxObjectNotApplicable {
			c.TaxBase = la.Base
			c.TaxAmount = la.Tax
			if la.TaxObject == sat.TaxObjectTaxable {
				c.TaxRate = rate
			}
		}
		if la.TaxObject == sat.TaxObjectTaxable {
			c.Withholdings = withholdings(la.Base, terms)
			for _, w := range c.Withholdings {
				if w.Tax == sat.TaxIVA {
					retainedVAT = retainedVAT.Add(w.Amount)
				} else {
					retainedISR = retainedISR.Add(w.Amount)
				}
			}
		}
		doc.Concepts = append(doc.Concepts, c)
	}

	doc.Subtotal = alloc.Totals.Gross
	doc.Discount = alloc.Totals.Discount
	doc.TaxTransferred = alloc.Totals.Tax
	doc.TaxWithheld = retainedVAT.Add(retainedISR)
	doc.Total = doc.Subtotal.Sub(doc.Discount).Add(doc.TaxTransferred).Sub(doc.TaxWithheld)

	// Solo se emite resumen de impuestos con base distinta de cero.
	if alloc.Totals.TaxableBase.IsPositive() {
		doc.Taxes.Transferred = append(doc.Taxes.Transferred, entity.TaxLine{
			Tax: sat.TaxIVA, FactorType: sat.FactorRate, Rate: rate,
			Base: alloc.Totals.TaxableBase, Amount: alloc.Totals.Tax,
		})
	}
	if alloc.Totals.ExemptBase.IsPositive() {
		doc.Taxes.Transferred = append(doc.Taxes.Transferred, entity.TaxLine{
			Tax: sat.TaxIVA, FactorType: sat.FactorExempt, Base: alloc.Totals.ExemptBase,
		})
	}
	if retainedISR.IsPositive() {
		doc.Taxes.Withheld = append(doc.Taxes.Withheld, entity.TaxLine{Tax: sat.TaxISR, Amount: retainedISR})
	}
	if retainedVAT.IsPositive() {
		doc.Taxes.Withheld = append(doc.Taxes.Withheld, entity.TaxLine{Tax: sat.TaxIVA, Amount: retainedVAT})
	}
	return doc, nil
}

// resolvePayment usa los códigos explícitos y, si faltan, deduce: crédito = PPD/99;
// contado = PUE con la forma de la tabla de métodos de cobro.
func resolvePayment(t entity.FiscalTerms) (sat.PaymentMethod, sat.PaymentForm, error) {
	method := t.PaymentMethod
	if method == "" {
		method = sat.PaymentMethodSingle
		if t.IsCredit {
			method = sat.PaymentMethodDeferred
		}
	}
	if _, err := sat.ParsePaymentMethod(string(method)); err != nil {
		return "", "", domain.NewFiscalError("armar comprobante", domain.ErrInvalidInput, err.Error())
	}
	form := t.PaymentForm
	if form == "" {
		if method == sat.PaymentMethodDeferred {
			form = sat.PaymentFormToBeDefined
		} else {
			form = sat.PaymentFormForMethod(t.Method)
		}
	}
	if _, err := sat.ParsePaymentForm(string(form)); err != nil {
		return "", "", domain.NewFiscalError("armar comprobante", domain.ErrInvalidInput, err.Error())
	}
	return method, form, nil
}

// withholdings retenciones de IVA e ISR de una línea gravada; solo las distintas de cero.
func withholdings(base decimal.Decimal, t entity.FiscalTerms) []entity.TaxLine {
	var out []entity.TaxLine
	if t.RetainedIncomeRate.IsPositive() {
		if amt := domcfdi.Round2(base.Mul(t.RetainedIncomeRate)); amt.IsPositive() {
			out = append(out, entity.TaxLine{Tax: sat.TaxISR, FactorType: sat.FactorRate, Rate: t.RetainedIncomeRate, Base: base, Amount: amt})
		}
	}
	if t.RetainedVATRate.IsPositive() {
		if amt := domcfdi.Round2(base.Mul(t.RetainedVATRate)); amt.IsPositive() {
			out = append(out, entity.TaxLine{Tax: sat.TaxIVA, FactorType: sat.FactorRate, Rate: t.RetainedVATRate, Base: base, Amount: amt})
		}
	}
	return out
}

func issuerParty(p entity.IssuerProfile) entity.Party {
	return entity.Party{
		RFC:        sat.NormalizeRFC(p.RFC),
		Name:       strings.ToUpper(strings.TrimSpace(p.Name)),
		TaxRegime:  p.TaxRegime,
		PostalCode: p.PostalCode,
	}
}

func receiverParty(c *entity.Customer) entity.Party {
	return entity.Party{
		RFC:              sat.NormalizeRFC(c.RFC),
		Name:             strings.ToUpper(strings.TrimSpace(c.Name)),
		TaxRegime:        c.TaxRegime,
		PostalCode:       c.PostalCode,
		ResidenceCountry: c.ResidenceCountry,
		ForeignTaxID:     c.ForeignTaxID,
	}
}

// relation solo se emite con tipo y al menos un folio.
func relation(r *entity.DocumentRelation) *entity.DocumentRelation {
	if r == nil || r.Type == "" || len(r.UUIDs) == 0 {
		return nil
	}
	out := &entity.DocumentRelation{Type: r.Type}
	for _, u := range r.UUIDs {
		out.UUIDs = append(out.UUIDs, strings.ToUpper(strings.TrimSpace(u)))
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
