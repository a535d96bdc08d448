package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/cfdi-engine/internal/application/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
)

var _ cfdi.PaymentApplier = (*PaymentApplier)(nil)

// PaymentApplier registra en la cuenta por cobrar los pagos que documenta un complemento importado.
type PaymentApplier struct {
	q           Querier
	documents   *FiscalDocumentRepo
	receivables *ReceivableRepo
}

// NewPaymentApplier construye el colaborador sobre pool o tx.
func NewPaymentApplier(q Querier) *PaymentApplier {
	return &PaymentApplier{
		q:           q,
		documents:   NewFiscalDocumentRepository(q),
		receivables: NewReceivableRepository(q),
	}
}

// ApplyPayment localiza factura, venta y cuenta por cobrar del folio relacionado.
// Reaplicar el mismo complemento no suma dos veces.
func (a *PaymentApplier) ApplyPayment(ctx context.Context, p cfdi.PaymentApplication) error {
	invoice, err := a.documents.GetByUUID(ctx, p.RelatedUUID, false)
	if err != nil {
		return err
	}
	if invoice == nil || invoice.SaleID == "" {
		return fmt.Errorf("apply payment %s: %w", p.RelatedUUID, domain.ErrNotFound)
	}
	rec, err := a.receivables.GetBySale(ctx, invoice.SaleID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("apply payment %s: %w", p.RelatedUUID, domain.ErrNotFound)
	}

	tag, err := a.q.Exec(ctx, `
		INSERT INTO receivable_payments (id, receivable_id, payment_document_id, related_uuid, amount, payment_date, payment_form, partiality)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (payment_document_id, related_uuid) DO NOTHING`,
		uuid.New().String(), rec.ID, p.PaymentDocumentID, invoice.UUID, p.Amount, p.PaymentDate, p.PaymentForm, p.Partiality,
	)
	if err != nil {
		return fmt.Errorf("insert receivable payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	_, err = a.q.Exec(ctx, `
		UPDATE receivables
		SET paid = paid + $2,
		    status = CASE WHEN total - (paid + $2) <= 0 THEN $3 ELSE status END,
		    updated_at = now()
		WHERE id = $1`, rec.ID, p.Amount, entity.ReceivablePaid)
	if err != nil {
		return fmt.Errorf("update receivable: %w", err)
	}
	return nil
}
