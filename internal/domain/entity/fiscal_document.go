package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// DocumentStatus estado local del comprobante.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"     // Reservado, aún sin folio fiscal
	StatusStamped   DocumentStatus = "STAMPED"   // Timbrado por el PAC
	StatusCancelled DocumentStatus = "CANCELLED" // Cancelado ante el SAT
)

// Direction indica si el comprobante lo emitimos o lo recibimos.
type Direction string

const (
	DirectionIssued   Direction = "issued"
	DirectionReceived Direction = "received"
)

// Estados reportados por el SAT.
const (
	AuthorityStatusValid     = "Vigente"
	AuthorityStatusCancelled = "Cancelado"
)

// FiscalDocument representa un CFDI (ingreso, pago, egreso) emitido o recibido.
type FiscalDocument struct {
	ID           string
	SaleID       string // vacío en importados
	ReceivableID string // solo complementos de pago
	UUID         string // folio fiscal; vacío mientras está en borrador
	Kind         sat.DocumentKind
	Direction    Direction
	IsAdvance    bool
	Series       string
	Folio        string
	IssuedAt     time.Time
	StampedAt    *time.Time
	Currency     string
	ExchangeRate decimal.Decimal

	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	TaxTransferred decimal.Decimal
	TaxWithheld    decimal.Decimal
	Total          decimal.Decimal

	PaymentMethod sat.PaymentMethod // vacío en comprobantes de pago
	PaymentForm   sat.PaymentForm
	CFDIUse       string
	ExportCode    string

	Status          DocumentStatus
	AuthorityStatus string

	Issuer   Party
	Receiver Party

	Relation *DocumentRelation
	Taxes    TaxSummary
	Payment  *PaymentComplement

	// Datos del sello y del timbre
	CertificateNumber    string
	Seal                 string
	SATCertificateNumber string
	SATSeal              string
	ProviderRFC          string
	CadenaOriginal       string

	XMLPath string // ruta del XML en el almacén de archivos

	CancelMotive     sat.CancelMotive
	SubstitutionUUID string
	CancelledAt      *time.Time

	Concepts  []*Concept
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Party emisor o receptor tal como queda en el comprobante.
type Party struct {
	RFC              string
	Name             string
	TaxRegime        string
	PostalCode       string
	ResidenceCountry string // solo extranjeros
	ForeignTaxID     string // NumRegIdTrib, solo extranjeros
}

// DocumentRelation nodo CfdiRelacionados.
type DocumentRelation struct {
	Type  sat.RelationType
	UUIDs []string
}

// TaxLine un traslado o retención agregado.
type TaxLine struct {
	Tax        string // 002 IVA, 001 ISR
	FactorType string // Tasa o Exento
	Rate       decimal.Decimal
	Base       decimal.Decimal
	Amount     decimal.Decimal
}

// TaxSummary resumen de impuestos del comprobante.
type TaxSummary struct {
	Transferred []TaxLine
	Withheld    []TaxLine
}

// IsLive indica si el comprobante bloquea un nuevo timbrado de la misma venta.
func (d *FiscalDocument) IsLive() bool {
	return d.DeletedAt == nil && d.Status != StatusCancelled
}
