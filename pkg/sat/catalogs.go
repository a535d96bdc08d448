// Package sat contiene catálogos y validaciones alineados al Anexo 20 del SAT
// (CFDI 4.0) y al complemento de recepción de pagos 2.0.
package sat

import (
	"fmt"
	"strings"
)

// =============================================================================
// c_MetodoPago
// =============================================================================

// PaymentMethod método de pago del comprobante.
type PaymentMethod string

const (
	PaymentMethodSingle   PaymentMethod = "PUE" // Pago en una sola exhibición
	PaymentMethodDeferred PaymentMethod = "PPD" // Pago en parcialidades o diferido
)

// ParsePaymentMethod rechaza cualquier código fuera del catálogo.
func ParsePaymentMethod(code string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToUpper(strings.TrimSpace(code))); m {
	case PaymentMethodSingle, PaymentMethodDeferred:
		return m, nil
	default:
		return "", fmt.Errorf("sat: método de pago desconocido %q", code)
	}
}

// =============================================================================
// c_FormaPago (códigos de uso frecuente)
// =============================================================================

// PaymentForm forma de pago del comprobante.
type PaymentForm string

const (
	PaymentFormCash         PaymentForm = "01" // Efectivo
	PaymentFormCheck        PaymentForm = "02" // Cheque nominativo
	PaymentFormTransfer     PaymentForm = "03" // Transferencia electrónica de fondos
	PaymentFormCreditCard   PaymentForm = "04" // Tarjeta de crédito
	PaymentFormWallet       PaymentForm = "05" // Monedero electrónico
	PaymentFormVoucher      PaymentForm = "08" // Vales de despensa
	PaymentFormCompensation PaymentForm = "17" // Compensación
	PaymentFormDebitCard    PaymentForm = "28" // Tarjeta de débito
	PaymentFormServiceCard  PaymentForm = "29" // Tarjeta de servicios
	PaymentFormAdvance      PaymentForm = "30" // Aplicación de anticipos
	PaymentFormToBeDefined  PaymentForm = "99" // Por definir
)

var validPaymentForms = map[PaymentForm]bool{
	PaymentFormCash: true, PaymentFormCheck: true, PaymentFormTransfer: true,
	PaymentFormCreditCard: true, PaymentFormWallet: true, PaymentFormVoucher: true,
	PaymentFormCompensation: true, PaymentFormDebitCard: true, PaymentFormServiceCard: true,
	PaymentFormAdvance: true, PaymentFormToBeDefined: true,
}

// ParsePaymentForm rechaza cualquier código fuera del catálogo.
func ParsePaymentForm(code string) (PaymentForm, error) {
	f := PaymentForm(strings.TrimSpace(code))
	if !validPaymentForms[f] {
		return "", fmt.Errorf("sat: forma de pago desconocida %q", code)
	}
	return f, nil
}

// paymentFormByMethod tabla método de cobro interno -> forma de pago SAT.
var paymentFormByMethod = map[string]PaymentForm{
	"cash":          PaymentFormCash,
	"efectivo":      PaymentFormCash,
	"check":         PaymentFormCheck,
	"cheque":        PaymentFormCheck,
	"transfer":      PaymentFormTransfer,
	"transferencia": PaymentFormTransfer,
	"card":          PaymentFormCreditCard,
	"tarjeta":       PaymentFormCreditCard,
	"credit_card":   PaymentFormCreditCard,
	"debit_card":    PaymentFormDebitCard,
}

// PaymentFormForMethod resuelve la forma de pago a partir del método de cobro del punto de venta.
// Cualquier método no registrado cae en "99" (por definir).
func PaymentFormForMethod(method string) PaymentForm {
	if f, ok := paymentFormByMethod[strings.ToLower(strings.TrimSpace(method))]; ok {
		return f
	}
	return PaymentFormToBeDefined
}

// =============================================================================
// c_ObjetoImp
// =============================================================================

// TaxObject clasifica una línea: gravada, exenta o no objeto de impuesto.
// Gravada y exenta se emiten como ObjetoImp "02"; la exenta lleva TipoFactor "Exento".
type TaxObject string

const (
	TaxObjectTaxable       TaxObject = "taxable"
	TaxObjectExempt        TaxObject = "exempt"
	TaxObjectNotApplicable TaxObject = "not_applicable"
)

// ParseTaxObject acepta el nombre interno o el código del catálogo ("01", "02").
func ParseTaxObject(s string) (TaxObject, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "taxable", "02", "":
		return TaxObjectTaxable, nil
	case "exempt", "exento":
		return TaxObjectExempt, nil
	case "not_applicable", "01":
		return TaxObjectNotApplicable, nil
	default:
		return "", fmt.Errorf("sat: objeto de impuesto desconocido %q", s)
	}
}

// Code devuelve el valor de ObjetoImp para el XML.
func (t TaxObject) Code() string {
	switch t {
	case TaxObjectTaxable, TaxObjectExempt:
		return "02"
	default:
		return "01"
	}
}

// =============================================================================
// c_TipoDeComprobante
// =============================================================================

// DocumentKind tipo de comprobante.
type DocumentKind string

const (
	KindIncome     DocumentKind = "I" // Ingreso
	KindCreditNote DocumentKind = "E" // Egreso
	KindPayment    DocumentKind = "P" // Pago
	KindTransfer   DocumentKind = "T" // Traslado (solo lectura en importación)
)

// ParseDocumentKind rechaza cualquier código fuera del catálogo.
func ParseDocumentKind(code string) (DocumentKind, error) {
	switch k := DocumentKind(strings.ToUpper(strings.TrimSpace(code))); k {
	case KindIncome, KindCreditNote, KindPayment, KindTransfer:
		return k, nil
	default:
		return "", fmt.Errorf("sat: tipo de comprobante desconocido %q", code)
	}
}

// =============================================================================
// c_Motivo (cancelación)
// =============================================================================

// CancelMotive motivo de cancelación ante el SAT.
type CancelMotive string

const (
	CancelWithRelation    CancelMotive = "01" // Comprobante emitido con errores con relación
	CancelWithoutRelation CancelMotive = "02" // Comprobante emitido con errores sin relación
	CancelNotCarriedOut   CancelMotive = "03" // No se llevó a cabo la operación
	CancelGlobalInvoice   CancelMotive = "04" // Operación nominativa relacionada en factura global
)

// ParseCancelMotive rechaza cualquier código fuera del catálogo.
func ParseCancelMotive(code string) (CancelMotive, error) {
	switch m := CancelMotive(strings.TrimSpace(code)); m {
	case CancelWithRelation, CancelWithoutRelation, CancelNotCarriedOut, CancelGlobalInvoice:
		return m, nil
	default:
		return "", fmt.Errorf("sat: motivo de cancelación desconocido %q", code)
	}
}

// RequiresSubstitution indica si el motivo exige el folio fiscal que sustituye.
func (m CancelMotive) RequiresSubstitution() bool { return m == CancelWithRelation }

// =============================================================================
// c_TipoRelacion
// =============================================================================

// RelationType tipo de relación entre CFDI.
type RelationType string

const (
	RelationCreditNote   RelationType = "01" // Nota de crédito de los documentos relacionados
	RelationDebitNote    RelationType = "02" // Nota de débito de los documentos relacionados
	RelationReturn       RelationType = "03" // Devolución de mercancía
	RelationSubstitution RelationType = "04" // Sustitución de los CFDI previos
	RelationTransfer     RelationType = "05" // Traslados de mercancías facturados previamente
	RelationInvoiced     RelationType = "06" // Factura generada por los traslados previos
	RelationAdvance      RelationType = "07" // CFDI por aplicación de anticipo
)

// ParseRelationType rechaza cualquier código fuera del catálogo.
func ParseRelationType(code string) (RelationType, error) {
	switch r := RelationType(strings.TrimSpace(code)); r {
	case RelationCreditNote, RelationDebitNote, RelationReturn, RelationSubstitution,
		RelationTransfer, RelationInvoiced, RelationAdvance:
		return r, nil
	default:
		return "", fmt.Errorf("sat: tipo de relación desconocido %q", code)
	}
}

// =============================================================================
// c_RegimenFiscal y c_UsoCFDI (códigos de uso frecuente)
// =============================================================================

const (
	RegimeGeneral       = "601" // General de Ley Personas Morales
	RegimeNonProfit     = "603" // Personas Morales con Fines no Lucrativos
	RegimeSalaried      = "605" // Sueldos y Salarios
	RegimeLeasing       = "606" // Arrendamiento
	RegimeProfessional  = "612" // Actividades Empresariales y Profesionales
	RegimeNoObligations = "616" // Sin obligaciones fiscales
	RegimeRIF           = "621" // Incorporación Fiscal
	RegimeRESICO        = "626" // Régimen Simplificado de Confianza
)

// ValidTaxRegimes códigos de régimen fiscal aceptados.
var ValidTaxRegimes = map[string]bool{
	RegimeGeneral: true, RegimeNonProfit: true, RegimeSalaried: true, RegimeLeasing: true,
	"607": true, "608": true, "610": true, "611": true, RegimeProfessional: true, "614": true,
	"615": true, RegimeNoObligations: true, "620": true, RegimeRIF: true, "622": true,
	"623": true, "624": true, "625": true, RegimeRESICO: true,
}

const (
	UseGoodsAcquisition = "G01"  // Adquisición de mercancías
	UseReturns          = "G02"  // Devoluciones, descuentos o bonificaciones
	UseGeneralExpenses  = "G03"  // Gastos en general
	UseNoFiscalEffect   = "S01"  // Sin efectos fiscales
	UsePayments         = "CP01" // Pagos
)

// ValidCFDIUses códigos de uso de CFDI aceptados.
var ValidCFDIUses = map[string]bool{
	UseGoodsAcquisition: true, UseReturns: true, UseGeneralExpenses: true,
	"I01": true, "I02": true, "I03": true, "I04": true, "I05": true, "I06": true, "I07": true, "I08": true,
	"D01": true, "D02": true, "D03": true, "D04": true, "D05": true, "D06": true, "D07": true,
	"D08": true, "D09": true, "D10": true, UseNoFiscalEffect: true, UsePayments: true, "CN01": true,
}

// =============================================================================
// Claves fijas del Anexo 20
// =============================================================================

const (
	ProductKeyGeneric = "01010101" // No existe en el catálogo
	ProductKeyPayment = "84111506" // Servicios de facturación (pagos y anticipos)
	UnitKeyPiece      = "H87"      // Pieza
	UnitKeyActivity   = "ACT"      // Actividad
	TaxIVA            = "002"
	TaxISR            = "001"
	FactorRate        = "Tasa"
	FactorExempt      = "Exento"
	CurrencyMXN       = "MXN"
	CurrencyNone      = "XXX"
	ExportNotApplies  = "01"
)
