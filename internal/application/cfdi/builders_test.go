package cfdi_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/cfdi-engine/internal/application/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain"
	domcfdi "github.com/jhoicas/cfdi-engine/internal/domain/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

func TestDocumentBuilder_DescuentoGlobalProrrateado(t *testing.T) {
	b := cfdi.NewDocumentBuilder(issuer())

	doc, err := b.Build(saleTwoLines("s1", "c1"), customer("c1"), cfdi.BuildOptions{Series: "A", Folio: "7", IssuedAt: fixedNow})
	require.NoError(t, err)
	require.NoError(t, domcfdi.Preflight(doc))

	require.Len(t, doc.Concepts, 2)
	assert.True(t, doc.Concepts[0].Discount.Equal(d("10")), doc.Concepts[0].Discount.String())
	assert.True(t, doc.Concepts[1].Discount.Equal(d("20")))
	assert.True(t, doc.Concepts[0].TaxAmount.Equal(d("14.40")))
	assert.True(t, doc.Concepts[1].TaxAmount.Equal(d("28.80")))
	assert.True(t, doc.Concepts[1].Amount.Equal(d("200")))
	assert.Equal(t, sat.ProductKeyGeneric, doc.Concepts[0].ProductKey)
	assert.Equal(t, sat.UnitKeyPiece, doc.Concepts[0].UnitKey)

	assert.True(t, doc.Subtotal.Equal(d("300")))
	assert.True(t, doc.Discount.Equal(d("30")))
	assert.True(t, doc.Total.Equal(d("313.20")))
	require.Len(t, doc.Taxes.Transferred, 1)
	assert.True(t, doc.Taxes.Transferred[0].Base.Equal(d("270")))

	assert.Equal(t, "EKU9003173C9", doc.Issuer.RFC)
	assert.Equal(t, "ESCUELA KEMPER URGATE", doc.Issuer.Name)
	assert.Equal(t, "UNIVERSIDAD ROBOTICA ESPAÑOLA", doc.Receiver.Name)
	assert.Equal(t, sat.UseGeneralExpenses, doc.CFDIUse)
	assert.Equal(t, entity.StatusDraft, doc.Status)
	assert.Nil(t, doc.Relation)
}

func TestDocumentBuilder_RetencionesYExento(t *testing.T) {
	s := &entity.Sale{
		ID: "s1", CustomerID: "c1", Method: "transfer",
		RetainedVATRate: d("0.106667"), RetainedIncomeRate: d("0.10"),
		Lines: []entity.SaleLine{
			{SKU: "HON", Description: "Honorarios", Quantity: d("1"), UnitPrice: d("1000")},
			{SKU: "LIB", Description: "Libro", Quantity: d("1"), UnitPrice: d("200"), TaxObject: sat.TaxObjectExempt},
		},
	}
	doc, err := cfdi.NewDocumentBuilder(issuer()).Build(s, customer("c1"), cfdi.BuildOptions{IssuedAt: fixedNow})
	require.NoError(t, err)

	// 1000 gravado: IVA 160, retención IVA 106.67, ISR 100. 200 exento.
	assert.True(t, doc.TaxTransferred.Equal(d("160")))
	assert.True(t, doc.TaxWithheld.Equal(d("206.67")), doc.TaxWithheld.String())
	assert.True(t, doc.Total.Equal(d("1153.33")), doc.Total.String())
	require.Len(t, doc.Taxes.Transferred, 2)
	assert.Equal(t, sat.FactorExempt, doc.Taxes.Transferred[1].FactorType)
	assert.True(t, doc.Taxes.Transferred[1].Base.Equal(d("200")))
	require.Len(t, doc.Taxes.Withheld, 2)
	assert.Equal(t, sat.TaxISR, doc.Taxes.Withheld[0].Tax)
	assert.Len(t, doc.Concepts[0].Withholdings, 2)
	assert.Empty(t, doc.Concepts[1].Withholdings)
	assert.Equal(t, sat.PaymentFormTransfer, doc.PaymentForm)
	require.NoError(t, domcfdi.Preflight(doc))
}

func TestDocumentBuilder_MetodoYFormaDePago(t *testing.T) {
	cases := []struct {
		name   string
		sale   func(s *entity.Sale)
		method sat.PaymentMethod
		form   sat.PaymentForm
	}{
		{"contado con tarjeta", func(s *entity.Sale) { s.Method = "card" }, sat.PaymentMethodSingle, sat.PaymentFormCreditCard},
		{"crédito", func(s *entity.Sale) { s.IsCredit = true }, sat.PaymentMethodDeferred, sat.PaymentFormToBeDefined},
		{"explícito", func(s *entity.Sale) {
			s.PaymentMethod = sat.PaymentMethodSingle
			s.PaymentForm = sat.PaymentFormDebitCard
		}, sat.PaymentMethodSingle, sat.PaymentFormDebitCard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := saleTwoLines("s1", "c1")
			tc.sale(s)
			doc, err := cfdi.NewDocumentBuilder(issuer()).Build(s, customer("c1"), cfdi.BuildOptions{})
			require.NoError(t, err)
			assert.Equal(t, tc.method, doc.PaymentMethod)
			assert.Equal(t, tc.form, doc.PaymentForm)
		})
	}

	s := saleTwoLines("s1", "c1")
	s.PaymentForm = "77"
	_, err := cfdi.NewDocumentBuilder(issuer()).Build(s, customer("c1"), cfdi.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentBuilder_Rechazos(t *testing.T) {
	b := cfdi.NewDocumentBuilder(issuer())

	empty := saleTwoLines("s1", "c1")
	empty.Lines = nil
	_, err := b.Build(empty, customer("c1"), cfdi.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = b.Build(saleTwoLines("s1", "c1"), nil, cfdi.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrIncompleteFiscalData)

	_, err = cfdi.NewDocumentBuilder(entity.IssuerProfile{RFC: "EKU9003173C9"}).
		Build(saleTwoLines("s1", "c1"), customer("c1"), cfdi.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrIncompleteFiscalData)

	// Descuento mayor que la venta.
	big := saleTwoLines("s1", "c1")
	big.Discount = d("301")
	_, err = b.Build(big, customer("c1"), cfdi.BuildOptions{})
	assert.Error(t, err)
}

func TestDocumentBuilder_RelacionYUso(t *testing.T) {
	doc, err := cfdi.NewDocumentBuilder(issuer()).Build(saleTwoLines("s1", "c1"), customer("c1"), cfdi.BuildOptions{
		CFDIUse:  sat.UseGoodsAcquisition,
		Relation: &entity.DocumentRelation{Type: sat.RelationSubstitution, UUIDs: []string{" ad662d33-6934-459c-a128-bdf0393e0f44 "}},
	})
	require.NoError(t, err)
	assert.Equal(t, sat.UseGoodsAcquisition, doc.CFDIUse)
	require.NotNil(t, doc.Relation)
	assert.Equal(t, []string{"AD662D33-6934-459C-A128-BDF0393E0F44"}, doc.Relation.UUIDs)

	doc, err = cfdi.NewDocumentBuilder(issuer()).Build(saleTwoLines("s1", "c1"), customer("c1"), cfdi.BuildOptions{
		Relation: &entity.DocumentRelation{Type: sat.RelationSubstitution},
	})
	require.NoError(t, err)
	assert.Nil(t, doc.Relation)
}

// ──────────────────────────────────────────────────────────────────────────────
// Complemento de pago
// ──────────────────────────────────────────────────────────────────────────────

func ppdInvoice() *entity.FiscalDocument {
	return &entity.FiscalDocument{
		ID: "inv", SaleID: "s1", UUID: "AD662D33-6934-459C-A128-BDF0393E0F44", Series: "A", Folio: "10",
		Kind: sat.KindIncome, Status: entity.StatusStamped, Currency: sat.CurrencyMXN,
		PaymentMethod: sat.PaymentMethodDeferred, PaymentForm: sat.PaymentFormToBeDefined,
		Taxes: entity.TaxSummary{Transferred: []entity.TaxLine{{Tax: sat.TaxIVA, FactorType: sat.FactorRate, Rate: d("0.16")}}},
	}
}

func paymentInput() cfdi.PaymentInput {
	return cfdi.PaymentInput{
		Receivable:  &entity.Receivable{ID: "r1", SaleID: "s1", Total: d("1160"), Paid: d("500")},
		Sale:        creditSale("s1", "c1"),
		Invoice:     ppdInvoice(),
		Customer:    customer("c1"),
		Amount:      d("500"),
		PaymentForm: sat.PaymentFormTransfer,
		PaymentDate: fixedNow,
		Partiality:  1,
		Series:      "P",
		Folio:       "1",
		IssuedAt:    fixedNow,
	}
}

func TestPaymentBuilder_ImpuestoProporcional(t *testing.T) {
	doc, err := cfdi.NewPaymentBuilder(issuer()).Build(paymentInput())
	require.NoError(t, err)
	require.NoError(t, domcfdi.Preflight(doc))

	assert.Equal(t, sat.KindPayment, doc.Kind)
	assert.Equal(t, sat.CurrencyNone, doc.Currency)
	assert.True(t, doc.Total.IsZero())
	assert.Equal(t, "r1", doc.ReceivableID)
	require.Len(t, doc.Concepts, 1)
	assert.Equal(t, sat.ProductKeyPayment, doc.Concepts[0].ProductKey)
	assert.Equal(t, sat.TaxObjectNotApplicable, doc.Concepts[0].TaxObject)

	rel := doc.Payment.Related[0]
	assert.True(t, rel.PriorBalance.Equal(d("1160")))
	assert.True(t, rel.AmountPaid.Equal(d("500")))
	assert.True(t, rel.RemainingBalance.Equal(d("660")))
	assert.True(t, rel.PriorBalance.Sub(rel.AmountPaid).Equal(rel.RemainingBalance))
	assert.Equal(t, sat.TaxObjectTaxable, rel.TaxObject)
	assert.True(t, rel.TaxBase.Equal(d("431.03")), rel.TaxBase.String())
	assert.True(t, rel.TaxAmount.Equal(d("68.97")), rel.TaxAmount.String())
	assert.True(t, rel.TaxRate.Equal(d("0.16")))
	assert.Equal(t, "10", rel.Folio)
}

func TestPaymentBuilder_VentaSinImpuesto(t *testing.T) {
	in := paymentInput()
	s := creditSale("s1", "c1")
	s.Tax = d("0")
	s.Total = d("1000")
	in.Sale = s
	in.Receivable.Total = d("1000")

	doc, err := cfdi.NewPaymentBuilder(issuer()).Build(in)
	require.NoError(t, err)
	rel := doc.Payment.Related[0]
	assert.Equal(t, sat.TaxObjectNotApplicable, rel.TaxObject)
	assert.True(t, rel.TaxAmount.IsZero())
}

func TestPaymentBuilder_BaseNetaDeDescuento(t *testing.T) {
	in := paymentInput()
	s := creditSale("s1", "c1")
	s.Subtotal = d("1000")
	s.Discount = d("100")
	s.Tax = d("144")
	s.Total = d("1044")
	in.Sale = s
	in.Receivable.Total = d("1044")
	in.Receivable.Paid = d("0")
	in.Amount = d("522")

	doc, err := cfdi.NewPaymentBuilder(issuer()).Build(in)
	require.NoError(t, err)
	rel := doc.Payment.Related[0]
	// Medio pago: base = (1000 - 100) × 0.5, nunca sobre el subtotal bruto.
	assert.True(t, rel.TaxBase.Equal(d("450")), rel.TaxBase.String())
	assert.True(t, rel.TaxAmount.Equal(d("72")), rel.TaxAmount.String())
	assert.True(t, rel.TaxBase.Add(rel.TaxAmount).Equal(rel.AmountPaid))
	assert.True(t, rel.RemainingBalance.Equal(d("522")))
}

func TestPaymentBuilder_Rechazos(t *testing.T) {
	b := cfdi.NewPaymentBuilder(issuer())

	in := paymentInput()
	in.Invoice.PaymentMethod = sat.PaymentMethodSingle
	_, err := b.Build(in)
	assert.ErrorIs(t, err, domain.ErrReferenceMissing)

	in = paymentInput()
	in.Invoice = nil
	_, err = b.Build(in)
	assert.ErrorIs(t, err, domain.ErrReferenceMissing)

	in = paymentInput()
	in.PaymentForm = sat.PaymentFormToBeDefined
	_, err = b.Build(in)
	assert.ErrorIs(t, err, domain.ErrLocalRuleViolation)

	in = paymentInput()
	in.Amount = d("0")
	_, err = b.Build(in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = paymentInput()
	in.Partiality = 0
	_, err = b.Build(in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Pago mayor que el saldo: el preflight lo detecta por saldo negativo.
	in = paymentInput()
	in.Receivable.Paid = d("1300")
	in.Amount = d("1300")
	doc, err := b.Build(in)
	require.NoError(t, err)
	assert.ErrorIs(t, domcfdi.Preflight(doc), domain.ErrLocalRuleViolation)
}

// ──────────────────────────────────────────────────────────────────────────────
// Anticipo
// ──────────────────────────────────────────────────────────────────────────────

func TestAdvanceBuilder_BaseDesdeMontoConIVA(t *testing.T) {
	cases := []struct{ amount, base, tax string }{
		{"1160", "1000", "160"},
		{"1000", "862.07", "137.93"},
		{"0.50", "0.43", "0.07"},
	}
	for _, tc := range cases {
		doc, err := cfdi.NewAdvanceBuilder(issuer()).Build(cfdi.AdvanceInput{
			Customer: customer("c1"), Amount: d(tc.amount), IssuedAt: fixedNow,
		})
		require.NoError(t, err, tc.amount)
		assert.True(t, doc.Subtotal.Equal(d(tc.base)), "%s: base %s", tc.amount, doc.Subtotal)
		assert.True(t, doc.TaxTransferred.Equal(d(tc.tax)), "%s: iva %s", tc.amount, doc.TaxTransferred)
		assert.True(t, doc.Total.Equal(d(tc.amount)))
		assert.True(t, doc.IsAdvance)
		assert.Equal(t, sat.PaymentMethodSingle, doc.PaymentMethod)
		assert.Equal(t, sat.UnitKeyActivity, doc.Concepts[0].UnitKey)
		require.NoError(t, domcfdi.Preflight(doc))
	}
}

func TestAdvanceBuilder_Rechazos(t *testing.T) {
	b := cfdi.NewAdvanceBuilder(issuer())

	_, err := b.Build(cfdi.AdvanceInput{Customer: customer("c1"), Amount: d("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = b.Build(cfdi.AdvanceInput{Customer: customer("c1"), Amount: d("100"), PaymentForm: "00"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	doc, err := b.Build(cfdi.AdvanceInput{Customer: customer("c1"), Amount: d("100"), TaxRate: d("0.08")})
	require.NoError(t, err)
	assert.True(t, doc.Subtotal.Equal(d("92.59")))
	assert.WithinDuration(t, time.Now(), doc.IssuedAt, time.Minute)
}
