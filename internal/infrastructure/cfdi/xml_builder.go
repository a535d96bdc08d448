package cfdi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// Namespaces oficiales CFDI 4.0 y complemento de pagos 2.0.
const (
	NsCFDI   = "http://www.sat.gob.mx/cfd/4"
	NsPago20 = "http://www.sat.gob.mx/Pagos20"
	NsTFD    = "http://www.sat.gob.mx/TimbreFiscalDigital"
	nsXsi    = "http://www.w3.org/2001/XMLSchema-instance"

	schemaCFDI   = "http://www.sat.gob.mx/cfd/4 http://www.sat.gob.mx/sitio_internet/cfd/4/cfdv40.xsd"
	schemaPago20 = "http://www.sat.gob.mx/Pagos20 http://www.sat.gob.mx/sitio_internet/cfd/Pagos/Pagos20.xsd"

	dateLayout = "2006-01-02T15:04:05"
)

// XMLBuilder arma el XML CFDI 4.0 a partir de un borrador. El XML sale sin Sello,
// NoCertificado ni Certificado: esos los agrega el Sealer.
type XMLBuilder struct{}

// NewXMLBuilder crea el servicio.
func NewXMLBuilder() *XMLBuilder {
	return &XMLBuilder{}
}

// Render genera el []byte del cfdi:Comprobante.
func (b *XMLBuilder) Render(doc *entity.FiscalDocument) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("cfdi: comprobante nulo")
	}
	if len(doc.Concepts) == 0 {
		return nil, fmt.Errorf("cfdi: el comprobante debe tener al menos un concepto")
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	w := &xmlWriter{enc: xml.NewEncoder(&buf)}
	w.enc.Indent("", "  ")

	isPayment := doc.Kind == sat.KindPayment
	schema := schemaCFDI
	root := attrs{}.
		add("xmlns:cfdi", NsCFDI).
		add("xmlns:xsi", nsXsi)
	if isPayment {
		root = root.add("xmlns:pago20", NsPago20)
		schema += " " + schemaPago20
	}
	root = root.
		add("xsi:schemaLocation", schema).
		add("Version", "4.0").
		addIf(doc.Series != "", "Serie", doc.Series).
		addIf(doc.Folio != "", "Folio", doc.Folio).
		add("Fecha", doc.IssuedAt.Format(dateLayout))

	if isPayment {
		root = root.
			add("SubTotal", "0").
			add("Moneda", sat.CurrencyNone).
			add("Total", "0")
	} else {
		root = root.
			addIf(doc.PaymentForm != "", "FormaPago", string(doc.PaymentForm)).
			add("SubTotal", money(doc.Subtotal)).
			addIf(doc.Discount.IsPositive(), "Descuento", money(doc.Discount)).
			add("Moneda", currencyOrMXN(doc.Currency)).
			addIf(needsExchangeRate(doc.Currency), "TipoCambio", doc.ExchangeRate.StringFixed(6)).
			add("Total", money(doc.Total))
	}
	export := doc.ExportCode
	if export == "" {
		export = sat.ExportNotApplies
	}
	root = root.
		add("TipoDeComprobante", string(doc.Kind)).
		add("Exportacion", export).
		addIf(!isPayment && doc.PaymentMethod != "", "MetodoPago", string(doc.PaymentMethod)).
		add("LugarExpedicion", doc.Issuer.PostalCode)

	w.open("cfdi:Comprobante", root)

	if doc.Relation != nil && len(doc.Relation.UUIDs) > 0 {
		w.open("cfdi:CfdiRelacionados", attrs{}.add("TipoRelacion", string(doc.Relation.Type)))
		for _, u := range doc.Relation.UUIDs {
			w.empty("cfdi:CfdiRelacionado", attrs{}.add("UUID", u))
		}
		w.close("cfdi:CfdiRelacionados")
	}

	w.empty("cfdi:Emisor", attrs{}.
		add("Rfc", doc.Issuer.RFC).
		add("Nombre", doc.Issuer.Name).
		add("RegimenFiscal", doc.Issuer.TaxRegime))

	w.empty("cfdi:Receptor", attrs{}.
		add("Rfc", doc.Receiver.RFC).
		add("Nombre", doc.Receiver.Name).
		add("DomicilioFiscalReceptor", doc.Receiver.PostalCode).
		addIf(doc.Receiver.ResidenceCountry != "", "ResidenciaFiscal", doc.Receiver.ResidenceCountry).
		addIf(doc.Receiver.ForeignTaxID != "", "NumRegIdTrib", doc.Receiver.ForeignTaxID).
		add("RegimenFiscalReceptor", doc.Receiver.TaxRegime).
		add("UsoCFDI", doc.CFDIUse))

	w.open("cfdi:Conceptos", nil)
	for _, c := range doc.Concepts {
		w.writeConcept(c, isPayment)
	}
	w.close("cfdi:Conceptos")

	if !isPayment {
		w.writeTaxSummary(doc)
	}

	if isPayment && doc.Payment != nil {
		w.open("cfdi:Complemento", nil)
		w.writePayments(doc.Payment)
		w.close("cfdi:Complemento")
	}

	w.close("cfdi:Comprobante")
	if w.err == nil {
		w.err = w.enc.Flush()
	}
	if w.err != nil {
		return nil, fmt.Errorf("cfdi: generar XML: %w", w.err)
	}
	return buf.Bytes(), nil
}

func (w *xmlWriter) writeConcept(c *entity.Concept, isPayment bool) {
	if isPayment {
		w.empty("cfdi:Concepto", attrs{}.
			add("ClaveProdServ", sat.ProductKeyPayment).
			add("Cantidad", "1").
			add("ClaveUnidad", sat.UnitKeyActivity).
			add("Descripcion", "Pago").
			add("ValorUnitario", "0").
			add("Importe", "0").
			add("ObjetoImp", sat.TaxObjectNotApplicable.Code()))
		return
	}

	a := attrs{}.
		add("ClaveProdServ", c.ProductKey).
		addIf(c.SKU != "", "NoIdentificacion", c.SKU).
		add("Cantidad", quantity(c.Quantity)).
		add("ClaveUnidad", c.UnitKey).
		addIf(c.UnitName != "", "Unidad", c.UnitName).
		add("Descripcion", c.Description).
		add("ValorUnitario", money(c.UnitValue)).
		add("Importe", money(c.Amount)).
		addIf(c.Discount.IsPositive(), "Descuento", money(c.Discount)).
		add("ObjetoImp", c.TaxObject.Code())

	if c.TaxObject == sat.TaxObjectNotApplicable {
		w.empty("cfdi:Concepto", a)
		return
	}

	w.open("cfdi:Concepto", a)
	w.open("cfdi:Impuestos", nil)
	w.open("cfdi:Traslados", nil)
	if c.TaxObject == sat.TaxObjectExempt {
		w.empty("cfdi:Traslado", attrs{}.
			add("Base", money(c.TaxBase)).
			add("Impuesto", sat.TaxIVA).
			add("TipoFactor", sat.FactorExempt))
	} else {
		w.empty("cfdi:Traslado", attrs{}.
			add("Base", money(c.TaxBase)).
			add("Impuesto", sat.TaxIVA).
			add("TipoFactor", sat.FactorRate).
			add("TasaOCuota", rate(c.TaxRate)).
			add("Importe", money(c.TaxAmount)))
	}
	w.close("cfdi:Traslados")
	if len(c.Withholdings) > 0 {
		w.open("cfdi:Retenciones", nil)
		for _, r := range c.Withholdings {
			w.empty("cfdi:Retencion", attrs{}.
				add("Base", money(r.Base)).
				add("Impuesto", r.Tax).
				add("TipoFactor", sat.FactorRate).
				add("TasaOCuota", rate(r.Rate)).
				add("Importe", money(r.Amount)))
		}
		w.close("cfdi:Retenciones")
	}
	w.close("cfdi:Impuestos")
	w.close("cfdi:Concepto")
}

func (w *xmlWriter) writeTaxSummary(doc *entity.FiscalDocument) {
	if len(doc.Taxes.Transferred) == 0 && len(doc.Taxes.Withheld) == 0 {
		return
	}
	a := attrs{}.
		addIf(len(doc.Taxes.Withheld) > 0, "TotalImpuestosRetenidos", money(doc.TaxWithheld))
	hasRate := false
	for _, t := range doc.Taxes.Transferred {
		if t.FactorType != sat.FactorExempt {
			hasRate = true
		}
	}
	a = a.addIf(hasRate, "TotalImpuestosTrasladados", money(doc.TaxTransferred))

	w.open("cfdi:Impuestos", a)
	if len(doc.Taxes.Withheld) > 0 {
		w.open("cfdi:Retenciones", nil)
		for _, r := range doc.Taxes.Withheld {
			w.empty("cfdi:Retencion", attrs{}.add("Impuesto", r.Tax).add("Importe", money(r.Amount)))
		}
		w.close("cfdi:Retenciones")
	}
	if len(doc.Taxes.Transferred) > 0 {
		w.open("cfdi:Traslados", nil)
		for _, t := range doc.Taxes.Transferred {
			ta := attrs{}.
				add("Base", money(t.Base)).
				add("Impuesto", t.Tax).
				add("TipoFactor", t.FactorType)
			if t.FactorType != sat.FactorExempt {
				ta = ta.add("TasaOCuota", rate(t.Rate)).add("Importe", money(t.Amount))
			}
			w.empty("cfdi:Traslado", ta)
		}
		w.close("cfdi:Traslados")
	}
	w.close("cfdi:Impuestos")
}

func (w *xmlWriter) writePayments(p *entity.PaymentComplement) {
	baseIVA, taxIVA := decimal.Zero, decimal.Zero
	var taxRate decimal.Decimal
	for _, r := range p.Related {
		if r.TaxObject == sat.TaxObjectTaxable {
			baseIVA = baseIVA.Add(r.TaxBase)
			taxIVA = taxIVA.Add(r.TaxAmount)
			taxRate = r.TaxRate
		}
	}
	withTax := baseIVA.IsPositive()

	w.open("pago20:Pagos", attrs{}.add("Version", "2.0"))
	totals := attrs{}
	if withTax && taxRate.Equal(decimal.New(16, -2)) {
		totals = totals.
			add("TotalTrasladosBaseIVA16", money(baseIVA)).
			add("TotalTrasladosImpuestoIVA16", money(taxIVA))
	}
	w.empty("pago20:Totales", totals.add("MontoTotalPagos", money(p.Amount)))

	w.open("pago20:Pago", attrs{}.
		add("FechaPago", p.PaymentDate.Format(dateLayout)).
		add("FormaDePagoP", string(p.PaymentForm)).
		add("MonedaP", currencyOrMXN(p.Currency)).
		add("TipoCambioP", "1").
		add("Monto", money(p.Amount)))
	for _, r := range p.Related {
		da := attrs{}.
			add("IdDocumento", r.DocumentUUID).
			addIf(r.Series != "", "Serie", r.Series).
			addIf(r.Folio != "", "Folio", r.Folio).
			add("MonedaDR", currencyOrMXN(r.Currency)).
			add("EquivalenciaDR", "1").
			add("NumParcialidad", strconv.Itoa(r.Partiality)).
			add("ImpSaldoAnt", money(r.PriorBalance)).
			add("ImpPagado", money(r.AmountPaid)).
			add("ImpSaldoInsoluto", money(r.RemainingBalance)).
			add("ObjetoImpDR", r.TaxObject.Code())
		if r.TaxObject != sat.TaxObjectTaxable {
			w.empty("pago20:DoctoRelacionado", da)
			continue
		}
		w.open("pago20:DoctoRelacionado", da)
		w.open("pago20:ImpuestosDR", nil)
		w.open("pago20:TrasladosDR", nil)
		w.empty("pago20:TrasladoDR", attrs{}.
			add("BaseDR", money(r.TaxBase)).
			add("ImpuestoDR", sat.TaxIVA).
			add("TipoFactorDR", sat.FactorRate).
			add("TasaOCuotaDR", rate(r.TaxRate)).
			add("ImporteDR", money(r.TaxAmount)))
		w.close("pago20:TrasladosDR")
		w.close("pago20:ImpuestosDR")
		w.close("pago20:DoctoRelacionado")
	}
	if withTax {
		w.open("pago20:ImpuestosP", nil)
		w.open("pago20:TrasladosP", nil)
		w.empty("pago20:TrasladoP", attrs{}.
			add("BaseP", money(baseIVA)).
			add("ImpuestoP", sat.TaxIVA).
			add("TipoFactorP", sat.FactorRate).
			add("TasaOCuotaP", rate(taxRate)).
			add("ImporteP", money(taxIVA)))
		w.close("pago20:TrasladosP")
		w.close("pago20:ImpuestosP")
	}
	w.close("pago20:Pago")
	w.close("pago20:Pagos")
}

// ──────────────────────────────────────────────────────────────────────────────
// Utilidades de escritura
// ──────────────────────────────────────────────────────────────────────────────

// Los nombres llevan el prefijo en Local ("cfdi:Concepto") para que encoding/xml
// no invente prefijos propios.
type attrs []xml.Attr

func (a attrs) add(name, value string) attrs {
	return append(a, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func (a attrs) addIf(cond bool, name, value string) attrs {
	if !cond {
		return a
	}
	return a.add(name, value)
}

type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err == nil {
		w.err = w.enc.EncodeToken(t)
	}
}

func (w *xmlWriter) open(name string, a attrs) {
	w.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: a})
}

func (w *xmlWriter) close(name string) {
	w.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (w *xmlWriter) empty(name string, a attrs) {
	w.open(name, a)
	w.close(name)
}

func money(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func rate(d decimal.Decimal) string {
	return d.StringFixed(6)
}

func quantity(d decimal.Decimal) string {
	return d.Round(6).String()
}

func currencyOrMXN(c string) string {
	if c == "" {
		return sat.CurrencyMXN
	}
	return c
}

func needsExchangeRate(c string) bool {
	return c != "" && c != sat.CurrencyMXN && c != sat.CurrencyNone
}
