package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// ── Solicitudes ───────────────────────────────────────────────────────────────

// StampRequest body para POST /api/cfdi/sales/:saleId/stamp. Todo es opcional.
type StampRequest struct {
	CFDIUse  string           `json:"cfdi_use,omitempty"` // vacío = el uso configurado en el cliente
	Relation *RelationRequest `json:"relation,omitempty"`
}

// RelationRequest nodo CfdiRelacionados (07 para aplicar anticipos).
type RelationRequest struct {
	Type  string   `json:"type"`
	UUIDs []string `json:"uuids"`
}

// PaymentRequest body para POST /api/cfdi/receivables/:id/payments.
type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentForm string          `json:"payment_form"`           // c_FormaPago, ej. "03"
	PaymentDate *time.Time      `json:"payment_date,omitempty"` // vacío = ahora
}

// AdvanceRequest body para POST /api/cfdi/advances.
type AdvanceRequest struct {
	CustomerID  string          `json:"customer_id"`
	SaleID      string          `json:"sale_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`             // total recibido, IVA incluido
	TaxRate     decimal.Decimal `json:"tax_rate,omitempty"` // cero = tasa del emisor
	PaymentForm string          `json:"payment_form"`
}

// CancelRequest body para POST /api/cfdi/documents/:id/cancel.
type CancelRequest struct {
	Motive           string `json:"motive"`
	SubstitutionUUID string `json:"substitution_uuid,omitempty"` // obligatorio con motivo 01
}

// ── Respuestas ────────────────────────────────────────────────────────────────

// DocumentResponse comprobante con conceptos y URL de verificación.
type DocumentResponse struct {
	ID                   string            `json:"id"`
	SaleID               string            `json:"sale_id,omitempty"`
	ReceivableID         string            `json:"receivable_id,omitempty"`
	UUID                 string            `json:"uuid,omitempty"`
	Kind                 string            `json:"kind"`
	Direction            string            `json:"direction"`
	IsAdvance            bool              `json:"is_advance,omitempty"`
	Series               string            `json:"series,omitempty"`
	Folio                string            `json:"folio,omitempty"`
	IssuedAt             time.Time         `json:"issued_at"`
	StampedAt            *time.Time        `json:"stamped_at,omitempty"`
	Currency             string            `json:"currency"`
	Subtotal             decimal.Decimal   `json:"subtotal"`
	Discount             decimal.Decimal   `json:"discount"`
	TaxTransferred       decimal.Decimal   `json:"tax_transferred"`
	TaxWithheld          decimal.Decimal   `json:"tax_withheld"`
	Total                decimal.Decimal   `json:"total"`
	PaymentMethod        string            `json:"payment_method,omitempty"`
	PaymentForm          string            `json:"payment_form,omitempty"`
	CFDIUse              string            `json:"cfdi_use"`
	Status               string            `json:"status"`
	AuthorityStatus      string            `json:"authority_status,omitempty"`
	IssuerRFC            string            `json:"issuer_rfc"`
	IssuerName           string            `json:"issuer_name"`
	ReceiverRFC          string            `json:"receiver_rfc"`
	ReceiverName         string            `json:"receiver_name"`
	CertificateNumber    string            `json:"certificate_number,omitempty"`
	SATCertificateNumber string            `json:"sat_certificate_number,omitempty"`
	CancelMotive         string            `json:"cancel_motive,omitempty"`
	SubstitutionUUID     string            `json:"substitution_uuid,omitempty"`
	CancelledAt          *time.Time        `json:"cancelled_at,omitempty"`
	Relation             *RelationRequest  `json:"relation,omitempty"`
	Concepts             []ConceptResponse `json:"concepts"`
	Payment              *PaymentResponse  `json:"payment,omitempty"`
	VerificationURL      string            `json:"verification_url,omitempty"`
}

// ConceptResponse línea del comprobante.
type ConceptResponse struct {
	ProductKey  string          `json:"product_key"`
	UnitKey     string          `json:"unit_key"`
	SKU         string          `json:"sku,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitValue   decimal.Decimal `json:"unit_value"`
	Amount      decimal.Decimal `json:"amount"`
	Discount    decimal.Decimal `json:"discount"`
	TaxObject   string          `json:"tax_object"`
	TaxBase     decimal.Decimal `json:"tax_base"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
}

// PaymentResponse complemento de pago.
type PaymentResponse struct {
	PaymentDate time.Time                `json:"payment_date"`
	PaymentForm string                   `json:"payment_form"`
	Amount      decimal.Decimal          `json:"amount"`
	Related     []RelatedPaymentResponse `json:"related"`
}

// RelatedPaymentResponse documento relacionado del complemento.
type RelatedPaymentResponse struct {
	DocumentUUID     string          `json:"document_uuid"`
	Partiality       int             `json:"partiality"`
	PriorBalance     decimal.Decimal `json:"prior_balance"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	TaxBase          decimal.Decimal `json:"tax_base"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
}

// CancelResponse resultado de la cancelación.
type CancelResponse struct {
	Document         DocumentResponse `json:"document"`
	AlreadyCancelled bool             `json:"already_cancelled"`
	SaleCancelled    bool             `json:"sale_cancelled"`
	CascadeError     string           `json:"cascade_error,omitempty"`
}

// ImportResponse resultado de la importación de un XML.
type ImportResponse struct {
	Document        DocumentResponse `json:"document"`
	Restored        bool             `json:"restored"`
	AppliedPayments int              `json:"applied_payments"`
	SkippedPayments int              `json:"skipped_payments"`
}

// CertificateStatusResponse estado del CSD.
type CertificateStatusResponse struct {
	Valid         bool      `json:"valid"`
	Warning       bool      `json:"warning"`
	Message       string    `json:"message"`
	DaysRemaining int       `json:"days_remaining"`
	Serial        string    `json:"serial,omitempty"`
	NotAfter      time.Time `json:"not_after,omitempty"`
}

// NewDocumentResponse arma la respuesta; la URL de verificación solo existe con folio fiscal.
func NewDocumentResponse(doc *entity.FiscalDocument) DocumentResponse {
	out := DocumentResponse{
		ID:                   doc.ID,
		SaleID:               doc.SaleID,
		ReceivableID:         doc.ReceivableID,
		UUID:                 doc.UUID,
		Kind:                 string(doc.Kind),
		Direction:            string(doc.Direction),
		IsAdvance:            doc.IsAdvance,
		Series:               doc.Series,
		Folio:                doc.Folio,
		IssuedAt:             doc.IssuedAt,
		StampedAt:            doc.StampedAt,
		Currency:             doc.Currency,
		Subtotal:             doc.Subtotal,
		Discount:             doc.Discount,
		TaxTransferred:       doc.TaxTransferred,
		TaxWithheld:          doc.TaxWithheld,
		Total:                doc.Total,
		PaymentMethod:        string(doc.PaymentMethod),
		PaymentForm:          string(doc.PaymentForm),
		CFDIUse:              doc.CFDIUse,
		Status:               string(doc.Status),
		AuthorityStatus:      doc.AuthorityStatus,
		IssuerRFC:            doc.Issuer.RFC,
		IssuerName:           doc.Issuer.Name,
		ReceiverRFC:          doc.Receiver.RFC,
		ReceiverName:         doc.Receiver.Name,
		CertificateNumber:    doc.CertificateNumber,
		SATCertificateNumber: doc.SATCertificateNumber,
		CancelMotive:         string(doc.CancelMotive),
		SubstitutionUUID:     doc.SubstitutionUUID,
		CancelledAt:          doc.CancelledAt,
		Concepts:             make([]ConceptResponse, 0, len(doc.Concepts)),
	}
	if doc.Relation != nil {
		out.Relation = &RelationRequest{Type: string(doc.Relation.Type), UUIDs: doc.Relation.UUIDs}
	}
	for _, c := range doc.Concepts {
		out.Concepts = append(out.Concepts, ConceptResponse{
			ProductKey:  c.ProductKey,
			UnitKey:     c.UnitKey,
			SKU:         c.SKU,
			Description: c.Description,
			Quantity:    c.Quantity,
			UnitValue:   c.UnitValue,
			Amount:      c.Amount,
			Discount:    c.Discount,
			TaxObject:   c.TaxObject.Code(),
			TaxBase:     c.TaxBase,
			TaxRate:     c.TaxRate,
			TaxAmount:   c.TaxAmount,
		})
	}
	if p := doc.Payment; p != nil {
		pr := &PaymentResponse{PaymentDate: p.PaymentDate, PaymentForm: string(p.PaymentForm), Amount: p.Amount}
		for _, r := range p.Related {
			pr.Related = append(pr.Related, RelatedPaymentResponse{
				DocumentUUID:     r.DocumentUUID,
				Partiality:       r.Partiality,
				PriorBalance:     r.PriorBalance,
				AmountPaid:       r.AmountPaid,
				RemainingBalance: r.RemainingBalance,
				TaxBase:          r.TaxBase,
				TaxAmount:        r.TaxAmount,
			})
		}
		out.Payment = pr
	}
	if doc.UUID != "" {
		out.VerificationURL = sat.VerificationURL(doc.UUID, doc.Issuer.RFC, doc.Receiver.RFC, doc.Total, doc.Seal)
	}
	return out
}
