package entity

import "github.com/shopspring/decimal"

// IssuerProfile perfil fiscal propio (emisor). Se arma desde la configuración.
type IssuerProfile struct {
	RFC            string
	Name           string
	TaxRegime      string
	PostalCode     string // LugarExpedicion
	Series         string
	DefaultTaxRate decimal.Decimal
}

// Complete indica si el perfil trae todo lo que exige el SAT.
func (p IssuerProfile) Complete() bool {
	return p.RFC != "" && p.Name != "" && p.TaxRegime != "" && p.PostalCode != ""
}
