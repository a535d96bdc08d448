package entity

import "time"

// Customer representa un cliente con su perfil fiscal (receptor del CFDI).
type Customer struct {
	ID               string
	Name             string // razón social tal como aparece en la constancia
	RFC              string
	TaxRegime        string
	PostalCode       string // domicilio fiscal
	CFDIUse          string
	ResidenceCountry string
	ForeignTaxID     string
	RequiresInvoice  bool
	Email            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
