package entity

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// Concept representa una línea (cfdi:Concepto) del comprobante.
type Concept struct {
	ID           string
	DocumentID   string
	ProductKey   string // ClaveProdServ
	UnitKey      string // ClaveUnidad
	UnitName     string
	SKU          string // NoIdentificacion
	Description  string
	Quantity     decimal.Decimal
	UnitValue    decimal.Decimal
	Amount       decimal.Decimal // cantidad * valor unitario
	Discount     decimal.Decimal // descuento propio + parte prorrateada del global
	TaxObject    sat.TaxObject
	TaxBase      decimal.Decimal
	TaxRate      decimal.Decimal
	TaxAmount    decimal.Decimal
	Withholdings []TaxLine
}
