package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/internal/domain/repository"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

const liveSaleConstraint = "fiscal_documents_live_sale_key"

const documentColumns = `
	id, sale_id, receivable_id, uuid, kind, direction, is_advance, series, folio,
	issued_at, stamped_at, currency, exchange_rate,
	subtotal, discount, tax_transferred, tax_withheld, total,
	payment_method, payment_form, cfdi_use, export_code, status, authority_status,
	issuer, receiver, relation, taxes, payment,
	certificate_number, seal, sat_certificate_number, sat_seal, provider_rfc, cadena_original,
	xml_path, cancel_motive, substitution_uuid, cancelled_at, deleted_at, created_at, updated_at`

// FiscalDocumentRepo comprobantes y conceptos sobre PostgreSQL (usable con pool o tx).
// Emisor, receptor, relación, impuestos y complemento de pago se guardan como JSONB.
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

// Create inserta cabecera y conceptos.
func (r *FiscalDocumentRepo) Create(ctx context.Context, doc *entity.FiscalDocument) error {
	query := `
		INSERT INTO fiscal_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
		        $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40, $41, $42)`
	_, err := r.q.Exec(ctx, query,
		doc.ID, nullIfEmpty(doc.SaleID), nullIfEmpty(doc.ReceivableID), nullIfEmpty(strings.ToUpper(doc.UUID)),
		doc.Kind, doc.Direction, doc.IsAdvance, doc.Series, doc.Folio,
		doc.IssuedAt, doc.StampedAt, doc.Currency, doc.ExchangeRate,
		doc.Subtotal, doc.Discount, doc.TaxTransferred, doc.TaxWithheld, doc.Total,
		doc.PaymentMethod, doc.PaymentForm, doc.CFDIUse, doc.ExportCode, doc.Status, doc.AuthorityStatus,
		doc.Issuer, doc.Receiver, doc.Relation, doc.Taxes, doc.Payment,
		doc.CertificateNumber, doc.Seal, doc.SATCertificateNumber, doc.SATSeal, doc.ProviderRFC, doc.CadenaOriginal,
		doc.XMLPath, doc.CancelMotive, doc.SubstitutionUUID, doc.CancelledAt, doc.DeletedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			details := "folio fiscal " + doc.UUID
			if constraintName(err) == liveSaleConstraint {
				details = "la venta " + doc.SaleID + " ya tiene un comprobante vivo"
			}
			return domain.NewFiscalError("guardar comprobante", domain.ErrDuplicateDocument, details)
		}
		return fmt.Errorf("insert fiscal document: %w", err)
	}
	return r.insertConcepts(ctx, doc)
}

// Update sobrescribe la cabecera y reemplaza los conceptos.
func (r *FiscalDocumentRepo) Update(ctx context.Context, doc *entity.FiscalDocument) error {
	query := `
		UPDATE fiscal_documents
		SET sale_id = $2, receivable_id = $3, uuid = $4, kind = $5, direction = $6, is_advance = $7,
		    series = $8, folio = $9, issued_at = $10, stamped_at = $11, currency = $12, exchange_rate = $13,
		    subtotal = $14, discount = $15, tax_transferred = $16, tax_withheld = $17, total = $18,
		    payment_method = $19, payment_form = $20, cfdi_use = $21, export_code = $22,
		    status = $23, authority_status = $24,
		    issuer = $25, receiver = $26, relation = $27, taxes = $28, payment = $29,
		    certificate_number = $30, seal = $31, sat_certificate_number = $32, sat_seal = $33,
		    provider_rfc = $34, cadena_original = $35, xml_path = $36,
		    cancel_motive = $37, substitution_uuid = $38, cancelled_at = $39, deleted_at = $40,
		    updated_at = $41
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		doc.ID, nullIfEmpty(doc.SaleID), nullIfEmpty(doc.ReceivableID), nullIfEmpty(strings.ToUpper(doc.UUID)),
		doc.Kind, doc.Direction, doc.IsAdvance,
		doc.Series, doc.Folio, doc.IssuedAt, doc.StampedAt, doc.Currency, doc.ExchangeRate,
		doc.Subtotal, doc.Discount, doc.TaxTransferred, doc.TaxWithheld, doc.Total,
		doc.PaymentMethod, doc.PaymentForm, doc.CFDIUse, doc.ExportCode,
		doc.Status, doc.AuthorityStatus,
		doc.Issuer, doc.Receiver, doc.Relation, doc.Taxes, doc.Payment,
		doc.CertificateNumber, doc.Seal, doc.SATCertificateNumber, doc.SATSeal,
		doc.ProviderRFC, doc.CadenaOriginal, doc.XMLPath,
		doc.CancelMotive, doc.SubstitutionUUID, doc.CancelledAt, doc.DeletedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewFiscalError("actualizar comprobante", domain.ErrDuplicateDocument, "folio fiscal "+doc.UUID)
		}
		return fmt.Errorf("update fiscal document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update fiscal document %s: %w", doc.ID, domain.ErrNotFound)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM fiscal_concepts WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete concepts: %w", err)
	}
	return r.insertConcepts(ctx, doc)
}

func (r *FiscalDocumentRepo) insertConcepts(ctx context.Context, doc *entity.FiscalDocument) error {
	query := `
		INSERT INTO fiscal_concepts (document_id, line_no, product_key, unit_key, unit_name, sku, description,
		                             quantity, unit_value, amount, discount, tax_object, tax_base, tax_rate, tax_amount, withholdings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	for i, c := range doc.Concepts {
		c.DocumentID = doc.ID
		_, err := r.q.Exec(ctx, query,
			doc.ID, i+1, c.ProductKey, c.UnitKey, c.UnitName, c.SKU, c.Description,
			c.Quantity, c.UnitValue, c.Amount, c.Discount, c.TaxObject, c.TaxBase, c.TaxRate, c.TaxAmount, c.Withholdings,
		)
		if err != nil {
			return fmt.Errorf("insert concept %d: %w", i+1, err)
		}
	}
	return nil
}

// Delete elimina un borrador. Un comprobante timbrado nunca se borra físicamente.
func (r *FiscalDocumentRepo) Delete(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM fiscal_documents WHERE id = $1 AND status = $2`, id, entity.StatusDraft)
	if err != nil {
		return fmt.Errorf("delete fiscal document: %w", err)
	}
	return nil
}

// SoftDelete marca deleted_at.
func (r *FiscalDocumentRepo) SoftDelete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE fiscal_documents SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete fiscal document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("soft delete fiscal document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetByID obtiene un comprobante no borrado con sus conceptos.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM fiscal_documents WHERE id = $1 AND deleted_at IS NULL`
	return r.getOne(ctx, query, id)
}

// GetByUUID busca por folio fiscal.
func (r *FiscalDocumentRepo) GetByUUID(ctx context.Context, uuid string, includeDeleted bool) (*entity.FiscalDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM fiscal_documents WHERE uuid = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	return r.getOne(ctx, query, strings.ToUpper(strings.TrimSpace(uuid)))
}

// ListBySale comprobantes no borrados de la venta, del más antiguo al más reciente.
func (r *FiscalDocumentRepo) ListBySale(ctx context.Context, saleID string, kind sat.DocumentKind) ([]*entity.FiscalDocument, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM fiscal_documents
		WHERE sale_id = $1 AND kind = $2 AND deleted_at IS NULL
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, saleID, kind)
	if err != nil {
		return nil, fmt.Errorf("list fiscal documents by sale: %w", err)
	}
	defer rows.Close()
	var list []*entity.FiscalDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, doc := range list {
		if err := r.loadConcepts(ctx, doc); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// NextFolio incrementa el contador de la serie; el upsert bloquea la fila hasta el fin de la transacción.
func (r *FiscalDocumentRepo) NextFolio(ctx context.Context, series string) (int64, error) {
	query := `
		INSERT INTO folio_sequences (series, last_value) VALUES ($1, 1)
		ON CONFLICT (series) DO UPDATE SET last_value = folio_sequences.last_value + 1
		RETURNING last_value`
	var next int64
	if err := r.q.QueryRow(ctx, query, series).Scan(&next); err != nil {
		return 0, fmt.Errorf("next folio %s: %w", series, err)
	}
	return next, nil
}

func (r *FiscalDocumentRepo) getOne(ctx context.Context, query string, arg any) (*entity.FiscalDocument, error) {
	doc, err := scanDocument(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.loadConcepts(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *FiscalDocumentRepo) loadConcepts(ctx context.Context, doc *entity.FiscalDocument) error {
	query := `
		SELECT product_key, unit_key, unit_name, sku, description, quantity, unit_value, amount, discount,
		       tax_object, tax_base, tax_rate, tax_amount, withholdings
		FROM fiscal_concepts WHERE document_id = $1 ORDER BY line_no`
	rows, err := r.q.Query(ctx, query, doc.ID)
	if err != nil {
		return fmt.Errorf("list concepts: %w", err)
	}
	defer rows.Close()
	doc.Concepts = nil
	for rows.Next() {
		c := &entity.Concept{DocumentID: doc.ID}
		if err := rows.Scan(&c.ProductKey, &c.UnitKey, &c.UnitName, &c.SKU, &c.Description,
			&c.Quantity, &c.UnitValue, &c.Amount, &c.Discount,
			&c.TaxObject, &c.TaxBase, &c.TaxRate, &c.TaxAmount, &c.Withholdings); err != nil {
			return fmt.Errorf("scan concept: %w", err)
		}
		doc.Concepts = append(doc.Concepts, c)
	}
	return rows.Err()
}

func scanDocument(row pgx.Row) (*entity.FiscalDocument, error) {
	var d entity.FiscalDocument
	var saleID, recID, fiscalID *string
	err := row.Scan(
		&d.ID, &saleID, &recID, &fiscalID, &d.Kind, &d.Direction, &d.IsAdvance, &d.Series, &d.Folio,
		&d.IssuedAt, &d.StampedAt, &d.Currency, &d.ExchangeRate,
		&d.Subtotal, &d.Discount, &d.TaxTransferred, &d.TaxWithheld, &d.Total,
		&d.PaymentMethod, &d.PaymentForm, &d.CFDIUse, &d.ExportCode, &d.Status, &d.AuthorityStatus,
		&d.Issuer, &d.Receiver, &d.Relation, &d.Taxes, &d.Payment,
		&d.CertificateNumber, &d.Seal, &d.SATCertificateNumber, &d.SATSeal, &d.ProviderRFC, &d.CadenaOriginal,
		&d.XMLPath, &d.CancelMotive, &d.SubstitutionUUID, &d.CancelledAt, &d.DeletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan fiscal document: %w", err)
	}
	d.SaleID = deref(saleID)
	d.ReceivableID = deref(recID)
	d.UUID = deref(fiscalID)
	return &d, nil
}
