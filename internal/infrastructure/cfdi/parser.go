package cfdi

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// Parser convierte un XML CFDI (3.3 o 4.0, con o sin complemento de pagos) al modelo interno.
// Tolera bloques opcionales ausentes; solo falla si no hay raíz Comprobante o si un importe
// no es numérico.
type Parser struct {
	ownRFC string
	loc    *time.Location
}

// NewParser construye el parser. ownRFC decide si el comprobante es emitido o recibido.
func NewParser(ownRFC string, loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{ownRFC: sat.NormalizeRFC(ownRFC), loc: loc}
}

// Parse lee el payload completo.
func (p *Parser) Parse(raw []byte) (*entity.FiscalDocument, error) {
	xdoc := etree.NewDocument()
	xdoc.ReadSettings.CharsetReader = charsetReader
	if err := xdoc.ReadFromBytes(raw); err != nil {
		return nil, domain.NewFiscalError("importar", domain.ErrInvalidInput, "XML ilegible: "+err.Error())
	}
	root := xdoc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return nil, domain.NewFiscalError("importar", domain.ErrInvalidInput, "no es un cfdi:Comprobante")
	}

	r := &attrReader{}
	doc := &entity.FiscalDocument{
		Series:            root.SelectAttrValue("Serie", ""),
		Folio:             root.SelectAttrValue("Folio", ""),
		Currency:          root.SelectAttrValue("Moneda", sat.CurrencyMXN),
		ExchangeRate:      r.decimalOr(root, "TipoCambio", decimal.NewFromInt(1)),
		Subtotal:          r.decimal(root, "SubTotal"),
		Discount:          r.decimal(root, "Descuento"),
		Total:             r.decimal(root, "Total"),
		PaymentMethod:     sat.PaymentMethod(root.SelectAttrValue("MetodoPago", "")),
		PaymentForm:       sat.PaymentForm(root.SelectAttrValue("FormaPago", "")),
		ExportCode:        root.SelectAttrValue("Exportacion", ""),
		IssuedAt:          r.date(root, "Fecha", p.loc),
		Status:            entity.StatusStamped,
		AuthorityStatus:   entity.AuthorityStatusValid,
		CertificateNumber: root.SelectAttrValue("NoCertificado", ""),
		Seal:              root.SelectAttrValue("Sello", ""),
	}
	kind, err := sat.ParseDocumentKind(root.SelectAttrValue("TipoDeComprobante", ""))
	if err != nil {
		return nil, domain.NewFiscalError("importar", domain.ErrInvalidInput, err.Error())
	}
	doc.Kind = kind

	if e := child(root, "Emisor"); e != nil {
		doc.Issuer = entity.Party{
			RFC:        sat.NormalizeRFC(e.SelectAttrValue("Rfc", "")),
			Name:       e.SelectAttrValue("Nombre", ""),
			TaxRegime:  e.SelectAttrValue("RegimenFiscal", ""),
			PostalCode: root.SelectAttrValue("LugarExpedicion", ""),
		}
	}
	if e := child(root, "Receptor"); e != nil {
		doc.Receiver = entity.Party{
			RFC:              sat.NormalizeRFC(e.SelectAttrValue("Rfc", "")),
			Name:             e.SelectAttrValue("Nombre", ""),
			TaxRegime:        e.SelectAttrValue("RegimenFiscalReceptor", ""),
			PostalCode:       e.SelectAttrValue("DomicilioFiscalReceptor", ""),
			ResidenceCountry: e.SelectAttrValue("ResidenciaFiscal", ""),
			ForeignTaxID:     e.SelectAttrValue("NumRegIdTrib", ""),
		}
		doc.CFDIUse = e.SelectAttrValue("UsoCFDI", "")
	}
	doc.Direction = entity.DirectionReceived
	if p.ownRFC != "" && doc.Issuer.RFC == p.ownRFC {
		doc.Direction = entity.DirectionIssued
	}

	for _, rel := range children(root, "CfdiRelacionados") {
		if doc.Relation == nil {
			doc.Relation = &entity.DocumentRelation{Type: sat.RelationType(rel.SelectAttrValue("TipoRelacion", ""))}
		}
		for _, u := range children(rel, "CfdiRelacionado") {
			doc.Relation.UUIDs = append(doc.Relation.UUIDs, strings.ToUpper(u.SelectAttrValue("UUID", "")))
		}
	}

	if cs := child(root, "Conceptos"); cs != nil {
		for _, c := range children(cs, "Concepto") {
			doc.Concepts = append(doc.Concepts, p.parseConcept(r, c))
		}
	}

	if imp := child(root, "Impuestos"); imp != nil {
		doc.TaxTransferred = r.decimal(imp, "TotalImpuestosTrasladados")
		doc.TaxWithheld = r.decimal(imp, "TotalImpuestosRetenidos")
		if ts := child(imp, "Traslados"); ts != nil {
			for _, t := range children(ts, "Traslado") {
				doc.Taxes.Transferred = append(doc.Taxes.Transferred, r.taxLine(t, ""))
			}
		}
		if rs := child(imp, "Retenciones"); rs != nil {
			for _, t := range children(rs, "Retencion") {
				doc.Taxes.Withheld = append(doc.Taxes.Withheld, r.taxLine(t, ""))
			}
		}
	}

	if comp := child(root, "Complemento"); comp != nil {
		if tfd := child(comp, "TimbreFiscalDigital"); tfd != nil {
			doc.UUID = strings.ToUpper(tfd.SelectAttrValue("UUID", ""))
			stamped := r.date(tfd, "FechaTimbrado", p.loc)
			if !stamped.IsZero() {
				doc.StampedAt = &stamped
			}
			doc.SATSeal = tfd.SelectAttrValue("SelloSAT", "")
			doc.SATCertificateNumber = tfd.SelectAttrValue("NoCertificadoSAT", "")
			doc.ProviderRFC = tfd.SelectAttrValue("RfcProvCertif", "")
			doc.CadenaOriginal = TFDCadenaOriginal(tfd.SelectAttrValue("Version", "1.1"), doc.UUID,
				tfd.SelectAttrValue("FechaTimbrado", ""), doc.ProviderRFC,
				tfd.SelectAttrValue("SelloCFD", doc.Seal), doc.SATCertificateNumber)
		}
		if pagos := child(comp, "Pagos"); pagos != nil && doc.Kind == sat.KindPayment {
			doc.Payment = p.parsePayments(r, pagos)
		}
	}

	if r.err != nil {
		return nil, domain.NewFiscalError("importar", domain.ErrInvalidInput, r.err.Error())
	}
	return doc, nil
}

func (p *Parser) parseConcept(r *attrReader, c *etree.Element) *entity.Concept {
	con := &entity.Concept{
		ProductKey:  c.SelectAttrValue("ClaveProdServ", ""),
		UnitKey:     c.SelectAttrValue("ClaveUnidad", ""),
		UnitName:    c.SelectAttrValue("Unidad", ""),
		SKU:         c.SelectAttrValue("NoIdentificacion", ""),
		Description: c.SelectAttrValue("Descripcion", ""),
		Quantity:    r.decimal(c, "Cantidad"),
		UnitValue:   r.decimal(c, "ValorUnitario"),
		Amount:      r.decimal(c, "Importe"),
		Discount:    r.decimal(c, "Descuento"),
		TaxObject:   sat.TaxObjectNotApplicable,
	}
	imp := child(c, "Impuestos")
	if imp != nil {
		if ts := child(imp, "Traslados"); ts != nil {
			// Solo se modela el IVA trasladado; otro impuesto se toma si no hay IVA.
			for _, t := range children(ts, "Traslado") {
				tl := r.taxLine(t, "")
				if tl.Tax != sat.TaxIVA && con.TaxObject != sat.TaxObjectNotApplicable {
					continue
				}
				con.TaxBase, con.TaxRate, con.TaxAmount = tl.Base, tl.Rate, tl.Amount
				con.TaxObject = sat.TaxObjectTaxable
				if tl.FactorType == sat.FactorExempt {
					con.TaxObject = sat.TaxObjectExempt
				}
			}
		}
		if rs := child(imp, "Retenciones"); rs != nil {
			for _, t := range children(rs, "Retencion") {
				con.Withholdings = append(con.Withholdings, r.taxLine(t, ""))
			}
		}
	}
	if c.SelectAttrValue("ObjetoImp", "") == "01" {
		con.TaxObject = sat.TaxObjectNotApplicable
	}
	return con
}

func (p *Parser) parsePayments(r *attrReader, pagos *etree.Element) *entity.PaymentComplement {
	pc := &entity.PaymentComplement{}
	for i, pago := range children(pagos, "Pago") {
		if i == 0 {
			pc.PaymentDate = r.date(pago, "FechaPago", p.loc)
			pc.PaymentForm = sat.PaymentForm(pago.SelectAttrValue("FormaDePagoP", ""))
			pc.Currency = pago.SelectAttrValue("MonedaP", sat.CurrencyMXN)
		}
		pc.Amount = pc.Amount.Add(r.decimal(pago, "Monto"))
		for _, dr := range children(pago, "DoctoRelacionado") {
			rp := entity.RelatedPayment{
				DocumentUUID:     strings.ToUpper(dr.SelectAttrValue("IdDocumento", "")),
				Series:           dr.SelectAttrValue("Serie", ""),
				Folio:            dr.SelectAttrValue("Folio", ""),
				Currency:         dr.SelectAttrValue("MonedaDR", sat.CurrencyMXN),
				Partiality:       r.int(dr, "NumParcialidad"),
				PriorBalance:     r.decimal(dr, "ImpSaldoAnt"),
				AmountPaid:       r.decimal(dr, "ImpPagado"),
				RemainingBalance: r.decimal(dr, "ImpSaldoInsoluto"),
				TaxObject:        sat.TaxObjectNotApplicable,
			}
			if impDR := child(dr, "ImpuestosDR"); impDR != nil {
				if ts := child(impDR, "TrasladosDR"); ts != nil {
					if t := child(ts, "TrasladoDR"); t != nil {
						tl := r.taxLine(t, "DR")
						rp.TaxObject = sat.TaxObjectTaxable
						rp.TaxBase = tl.Base
						rp.TaxRate = tl.Rate
						rp.TaxAmount = tl.Amount
					}
				}
			}
			pc.Related = append(pc.Related, rp)
		}
	}
	return pc
}

// TFDCadenaOriginal cadena original del complemento de certificación digital del SAT.
func TFDCadenaOriginal(version, uuid, stampedAt, providerRFC, sealCFD, satCertificate string) string {
	return "||" + strings.Join([]string{version, uuid, stampedAt, providerRFC, sealCFD, satCertificate}, "|") + "||"
}

// ──────────────────────────────────────────────────────────────────────────────
// Utilidades
// ──────────────────────────────────────────────────────────────────────────────

// Los XML de algunos proveedores vienen declarados en ISO-8859-1 o windows-1252.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(label) {
	case "iso-8859-1", "latin1", "latin-1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	case "utf-8", "utf8", "":
		return input, nil
	default:
		return nil, fmt.Errorf("codificación no soportada: %s", label)
	}
}

// child primer hijo directo con ese nombre local, sin importar el prefijo.
func child(e *etree.Element, local string) *etree.Element {
	for _, c := range e.ChildElements() {
		if c.Tag == local {
			return c
		}
	}
	return nil
}

func children(e *etree.Element, local string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if c.Tag == local {
			out = append(out, c)
		}
	}
	return out
}

// attrReader acumula el primer error de conversión para no cortar el flujo en cada atributo.
type attrReader struct {
	err error
}

func (r *attrReader) decimal(e *etree.Element, name string) decimal.Decimal {
	return r.decimalOr(e, name, decimal.Zero)
}

func (r *attrReader) decimalOr(e *etree.Element, name string, def decimal.Decimal) decimal.Decimal {
	v := strings.TrimSpace(e.SelectAttrValue(name, ""))
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		if r.err == nil {
			r.err = fmt.Errorf("%s/@%s no es numérico: %q", e.Tag, name, v)
		}
		return def
	}
	return d
}

func (r *attrReader) int(e *etree.Element, name string) int {
	v := strings.TrimSpace(e.SelectAttrValue(name, ""))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s/@%s no es entero: %q", e.Tag, name, v)
	}
	return n
}

func (r *attrReader) date(e *etree.Element, name string, loc *time.Location) time.Time {
	v := strings.TrimSpace(e.SelectAttrValue(name, ""))
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s/@%s no es fecha: %q", e.Tag, name, v)
	}
	return t
}

// taxLine lee Impuesto, TipoFactor, TasaOCuota, Base e Importe; suffix es "DR"
// en los documentos relacionados de un pago y vacío en el comprobante.
func (r *attrReader) taxLine(e *etree.Element, suffix string) entity.TaxLine {
	return entity.TaxLine{
		Tax:        e.SelectAttrValue("Impuesto"+suffix, ""),
		FactorType: e.SelectAttrValue("TipoFactor"+suffix, sat.FactorRate),
		Rate:       r.decimal(e, "TasaOCuota"+suffix),
		Base:       r.decimal(e, "Base"+suffix),
		Amount:     r.decimal(e, "Importe"+suffix),
	}
}
