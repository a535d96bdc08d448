package cfdi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	domcfdi "github.com/jhoicas/cfdi-engine/internal/domain/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	infracfdi "github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
	"github.com/jhoicas/cfdi-engine/pkg/logger"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// Versión del TimbreFiscalDigital con la que se reconstruye la cadena original del timbre.
const tfdVersion = "1.1"

// CoordinatorConfig datos fijos del emisor y series de folios.
type CoordinatorConfig struct {
	Issuer        entity.IssuerProfile
	Series        string // facturas y anticipos
	PaymentSeries string // complementos de pago
	Location      *time.Location
}

// StampRequest opciones de timbrado de una venta.
type StampRequest struct {
	CFDIUse  string
	Relation *entity.DocumentRelation
}

// PaymentRequest pago que se documenta con un complemento.
type PaymentRequest struct {
	Amount      decimal.Decimal
	PaymentForm sat.PaymentForm
	PaymentDate time.Time
}

// AdvanceRequest anticipo recibido antes de facturar.
type AdvanceRequest struct {
	CustomerID  string
	SaleID      string
	Amount      decimal.Decimal
	TaxRate     decimal.Decimal
	PaymentForm sat.PaymentForm
}

// CancelRequest motivo y, para el motivo 01, el folio que sustituye.
type CancelRequest struct {
	Motive           sat.CancelMotive
	SubstitutionUUID string
}

// CancelOutcome resultado de la cancelación. CascadeError trae el motivo si la venta no se pudo
// cancelar; el CFDI queda cancelado de todos modos.
type CancelOutcome struct {
	Document         *entity.FiscalDocument
	AlreadyCancelled bool
	SaleCancelled    bool
	CascadeError     string
}

// Coordinator ciclo de vida de los CFDI emitidos:
//
//	reservar borrador (tx) → XML → sello CSD → PAC → guardar XML → marcar timbrado (tx)
//
// La reserva y el índice único sobre la venta impiden dos comprobantes vivos aunque lleguen
// solicitudes concurrentes. Ninguna transacción queda abierta durante la llamada al PAC.
type Coordinator struct {
	tx       TxRunner
	certs    CertificateSource
	renderer DocumentRenderer
	sealer   DocumentSealer
	signer   RemoteSigner
	store    PayloadStore
	invoices *DocumentBuilder
	payments *PaymentBuilder
	advances *AdvanceBuilder
	cfg      CoordinatorConfig
	log      *logger.Logger
	now      func() time.Time
}

// NewCoordinator construye el coordinador. log puede ser nil.
func NewCoordinator(
	tx TxRunner,
	certs CertificateSource,
	renderer DocumentRenderer,
	sealer DocumentSealer,
	signer RemoteSigner,
	store PayloadStore,
	cfg CoordinatorConfig,
	log *logger.Logger,
) *Coordinator {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Coordinator{
		tx:       tx,
		certs:    certs,
		renderer: renderer,
		sealer:   sealer,
		signer:   signer,
		store:    store,
		invoices: NewDocumentBuilder(cfg.Issuer),
		payments: NewPaymentBuilder(cfg.Issuer),
		advances: NewAdvanceBuilder(cfg.Issuer),
		cfg:      cfg,
		log:      log.WithComponent("cfdi"),
		now:      time.Now,
	}
}

// WithClock reemplaza el reloj (pruebas).
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// ═══════════════════════════════════════════════════════════════════════════════
// Timbrado
// ═══════════════════════════════════════════════════════════════════════════════

// Stamp timbra la factura de ingreso de una venta. Si la venta ya tiene un comprobante vivo
// devuelve ErrDuplicateDocument sin llamar al PAC.
func (c *Coordinator) Stamp(ctx context.Context, saleID string, req StampRequest) (*entity.FiscalDocument, error) {
	var draft *entity.FiscalDocument
	err := c.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		sale, err := tx.Sales().GetForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return domain.NewFiscalError("timbrar", domain.ErrNotFound, "venta "+saleID)
		}
		if sale.IsCancelled() {
			return domain.NewFiscalError("timbrar", domain.ErrInvalidTransition, "la venta está cancelada")
		}
		if err := ensureNoLiveInvoice(ctx, tx, saleID); err != nil {
			return err
		}
		customer, err := loadCustomer(ctx, tx, sale.CustomerID)
		if err != nil {
			return err
		}
		if !customer.RequiresInvoice {
			return domain.NewFiscalError("timbrar", domain.ErrInvalidInput, "el cliente no requiere factura")
		}
		if err := c.checkAdvanceRelation(ctx, tx, req.Relation); err != nil {
			return err
		}

		folio, err := tx.Documents().NextFolio(ctx, c.cfg.Series)
		if err != nil {
			return err
		}
		draft, err = c.invoices.Build(sale, customer, BuildOptions{
			Series:   c.cfg.Series,
			Folio:    strconv.FormatInt(folio, 10),
			IssuedAt: c.now().In(c.cfg.Location),
			CFDIUse:  req.CFDIUse,
			Relation: req.Relation,
		})
		if err != nil {
			return err
		}
		return c.reserve(ctx, tx, draft)
	})
	if err != nil {
		c.log.Warn().Str("sale_id", saleID).Err(err).Msg("timbrado rechazado")
		return nil, err
	}
	return c.sealAndStamp(ctx, draft, nil)
}

// StampPayment timbra el complemento de pago de una cuenta por cobrar cuya factura es PPD.
// La parcialidad es el número de complementos vigentes de la venta más uno.
func (c *Coordinator) StampPayment(ctx context.Context, receivableID string, req PaymentRequest) (*entity.FiscalDocument, error) {
	var draft *entity.FiscalDocument
	err := c.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		rec, err := tx.Receivables().GetByID(ctx, receivableID)
		if err != nil {
			return err
		}
		if rec == nil {
			return domain.NewFiscalError("complemento de pago", domain.ErrNotFound, "cuenta por cobrar "+receivableID)
		}
		sale, err := tx.Sales().GetForUpdate(ctx, rec.SaleID)
		if err != nil {
			return err
		}
		if sale == nil {
			return domain.NewFiscalError("complemento de pago", domain.ErrNotFound, "venta "+rec.SaleID)
		}
		invoice, err := deferredInvoice(ctx, tx, sale.ID)
		if err != nil {
			return err
		}
		prior, err := tx.Documents().ListBySale(ctx, sale.ID, sat.KindPayment)
		if err != nil {
			return err
		}
		partiality := 1
		for _, d := range prior {
			if d.Status != entity.StatusCancelled {
				partiality++
			}
		}
		customer, err := loadCustomer(ctx, tx, sale.CustomerID)
		if err != nil {
			return err
		}

		folio, err := tx.Documents().NextFolio(ctx, c.cfg.PaymentSeries)
		if err != nil {
			return err
		}
		now := c.now().In(c.cfg.Location)
		paidAt := req.PaymentDate
		if paidAt.IsZero() {
			paidAt = now
		}
		draft, err = c.payments.Build(PaymentInput{
			Receivable:  rec,
			Sale:        sale,
			Invoice:     invoice,
			Customer:    customer,
			Amount:      req.Amount,
			PaymentForm: req.PaymentForm,
			PaymentDate: paidAt.In(c.cfg.Location).Truncate(time.Second),
			Partiality:  partiality,
			Series:      c.cfg.PaymentSeries,
			Folio:       strconv.FormatInt(folio, 10),
			IssuedAt:    now,
		})
		if err != nil {
			return err
		}
		return c.reserve(ctx, tx, draft)
	})
	if err != nil {
		c.log.Warn().Str("receivable_id", receivableID).Err(err).Msg("complemento de pago rechazado")
		return nil, err
	}
	return c.sealAndStamp(ctx, draft, func(ctx context.Context, tx FiscalTx) error {
		return tx.Receivables().IncrementPartiality(ctx, receivableID)
	})
}

// StampAdvance timbra un CFDI de anticipo. No bloquea la factura posterior de la venta,
// que debe relacionarlo con tipo 07.
func (c *Coordinator) StampAdvance(ctx context.Context, req AdvanceRequest) (*entity.FiscalDocument, error) {
	var draft *entity.FiscalDocument
	err := c.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		customer, err := loadCustomer(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}
		if req.SaleID != "" {
			sale, err := tx.Sales().GetForUpdate(ctx, req.SaleID)
			if err != nil {
				return err
			}
			if sale == nil {
				return domain.NewFiscalError("anticipo", domain.ErrNotFound, "venta "+req.SaleID)
			}
			if sale.CustomerID != customer.ID {
				return domain.NewFiscalError("anticipo", domain.ErrInvalidInput, "la venta pertenece a otro cliente")
			}
		}
		folio, err := tx.Documents().NextFolio(ctx, c.cfg.Series)
		if err != nil {
			return err
		}
		draft, err = c.advances.Build(AdvanceInput{
			SaleID:      req.SaleID,
			Customer:    customer,
			Amount:      req.Amount,
			TaxRate:     req.TaxRate,
			PaymentForm: req.PaymentForm,
			Series:      c.cfg.Series,
			Folio:       strconv.FormatInt(folio, 10),
			IssuedAt:    c.now().In(c.cfg.Location),
		})
		if err != nil {
			return err
		}
		return c.reserve(ctx, tx, draft)
	})
	if err != nil {
		c.log.Warn().Str("customer_id", req.CustomerID).Err(err).Msg("anticipo rechazado")
		return nil, err
	}
	return c.sealAndStamp(ctx, draft, nil)
}

// reserve corre las reglas locales, exige un CSD vigente e inserta el borrador.
// Todo lo que pueda rechazarse sin el PAC se rechaza aquí.
func (c *Coordinator) reserve(ctx context.Context, tx FiscalTx, draft *entity.FiscalDocument) error {
	if err := domcfdi.Preflight(draft); err != nil {
		return err
	}
	if err := c.certs.Validate().Require(); err != nil {
		return err
	}
	now := c.now()
	draft.ID = uuid.NewString()
	draft.CreatedAt = now
	draft.UpdatedAt = now
	return tx.Documents().Create(ctx, draft)
}

// sealAndStamp sella, timbra y persiste el borrador ya reservado. Si el sello o el PAC fallan
// el borrador se elimina para liberar la venta. onStamped corre en la misma transacción que
// marca el comprobante como timbrado.
func (c *Coordinator) sealAndStamp(ctx context.Context, draft *entity.FiscalDocument, onStamped func(ctx context.Context, tx FiscalTx) error) (*entity.FiscalDocument, error) {
	payload, err := c.sign(ctx, draft)
	if err != nil {
		c.log.Error().Str("document_id", draft.ID).Str("sale_id", draft.SaleID).Err(err).Msg("timbrado fallido, se libera el borrador")
		c.release(ctx, draft)
		return nil, err
	}

	// A partir de aquí el SAT ya tiene el folio: la persistencia no depende de que el cliente siga esperando.
	ctx = context.WithoutCancel(ctx)

	// Sin XML en el almacén el timbre se persiste igual para no dejar la venta bloqueada por un borrador.
	path, saveErr := c.store.Save(draft, payload)
	if saveErr != nil {
		c.log.Error().Str("document_id", draft.ID).Str("uuid", draft.UUID).Err(saveErr).Msg("no se pudo guardar el XML timbrado")
	}
	draft.XMLPath = path

	err = c.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		if err := tx.Documents().Update(ctx, draft); err != nil {
			return err
		}
		if onStamped != nil {
			return onStamped(ctx, tx)
		}
		return nil
	})
	if err != nil {
		c.log.Error().Str("document_id", draft.ID).Str("uuid", draft.UUID).Str("xml_path", path).Err(err).
			Msg("CFDI timbrado pero no persistido")
		return nil, fmt.Errorf("persistir timbre %s: %w", draft.UUID, err)
	}
	if saveErr != nil {
		return nil, fmt.Errorf("guardar XML %s: %w", draft.UUID, saveErr)
	}

	c.log.Info().Str("document_id", draft.ID).Str("sale_id", draft.SaleID).Str("uuid", draft.UUID).
		Str("kind", string(draft.Kind)).Str("total", draft.Total.StringFixed(2)).Msg("CFDI timbrado")
	return draft, nil
}

// sign carga el CSD, arma el XML, lo sella y lo envía al PAC. Devuelve el XML timbrado.
func (c *Coordinator) sign(ctx context.Context, draft *entity.FiscalDocument) ([]byte, error) {
	cert, err := c.certs.LoadSigningCertificate()
	if err != nil {
		return nil, err
	}
	key, err := c.certs.LoadSigningKey()
	if err != nil {
		return nil, err
	}
	draft.CertificateNumber = cert.Serial

	raw, err := c.renderer.Render(draft)
	if err != nil {
		return nil, fmt.Errorf("armar XML: %w", err)
	}
	sealed, err := c.sealer.Seal(raw, cert, key)
	if err != nil {
		return nil, fmt.Errorf("sellar XML: %w", err)
	}
	draft.Seal = sealed.Seal

	res, err := c.signer.Stamp(ctx, sealed.XML)
	if err != nil {
		if !errors.Is(err, domain.ErrRemoteSigner) {
			err = &domain.RemoteSignerError{Message: err.Error()}
		}
		return nil, err
	}
	if res == nil || res.UUID == "" {
		return nil, &domain.RemoteSignerError{Message: "respuesta de timbrado sin folio fiscal"}
	}

	stampedAt := res.StampedAt
	draft.UUID = strings.ToUpper(res.UUID)
	draft.StampedAt = &stampedAt
	draft.SATSeal = res.SATSeal
	draft.SATCertificateNumber = res.SATCertificateNumber
	draft.ProviderRFC = res.ProviderRFC
	draft.CadenaOriginal = res.CadenaOriginal
	if draft.CadenaOriginal == "" {
		draft.CadenaOriginal = infracfdi.TFDCadenaOriginal(tfdVersion, draft.UUID,
			stampedAt.Format("2006-01-02T15:04:05"), res.ProviderRFC, draft.Seal, res.SATCertificateNumber)
	}
	draft.Status = entity.StatusStamped
	draft.AuthorityStatus = entity.AuthorityStatusValid
	draft.UpdatedAt = c.now()

	if len(res.XML) > 0 {
		return res.XML, nil
	}
	return sealed.XML, nil
}

// release borra el borrador en una transacción propia, aunque el contexto original ya se haya cancelado.
func (c *Coordinator) release(ctx context.Context, draft *entity.FiscalDocument) {
	ctx = context.WithoutCancel(ctx)
	err := c.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		return tx.Documents().Delete(ctx, draft.ID)
	})
	if err != nil {
		c.log.Error().Str("document_id", draft.ID).Err(err).Msg("no se pudo eliminar el borrador")
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// Cancelación
// ═══════════════════════════════════════════════════════════════════════════════

// Cancel cancela un CFDI timbrado ante el SAT y, si es la factura de una venta, cancela la venta
// en un punto de guardado. Cancelar un comprobante ya cancelado no vuelve a llamar al PAC.
func (c *Coordinator) Cancel(ctx context.Context, documentID string, req CancelRequest) (*CancelOutcome, error) {
	if err := domcfdi.ValidateCancellation(req.Motive, req.SubstitutionUUID); err != nil {
		return nil, err
	}
	doc, err := c.Document(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == entity.StatusCancelled {
		return &CancelOutcome{Document: doc, AlreadyCancelled: true}, nil
	}
	if doc.Direction != entity.DirectionIssued {
		return nil, domain.NewFiscalError("cancelar", domain.ErrInvalidTransition, "solo se cancelan comprobantes emitidos")
	}
	if doc.Status != entity.StatusStamped || doc.UUID == "" {
		return nil, domain.NewFiscalError("cancelar", domain.ErrInvalidTransition, "el comprobante no está timbrado")
	}

	res, err := c.signer.Cancel(ctx, infracfdi.CancelRequest{
		UUID:             doc.UUID,
		IssuerRFC:        doc.Issuer.RFC,
		Motive:           req.Motive,
		SubstitutionUUID: strings.ToUpper(req.SubstitutionUUID),
	})
	if err != nil {
		c.log.Warn().Str("document_id", documentID).Str("uuid", doc.UUID).Err(err).Msg("cancelación rechazada")
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	out := &CancelOutcome{}
	err = c.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		current, err := tx.Documents().GetByID(ctx, documentID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.NewFiscalError("cancelar", domain.ErrNotFound, "comprobante "+documentID)
		}
		cancelledAt := res.CancelledAt
		if cancelledAt.IsZero() {
			cancelledAt = c.now()
		}
		current.Status = entity.StatusCancelled
		current.AuthorityStatus = entity.AuthorityStatusCancelled
		current.CancelMotive = req.Motive
		current.SubstitutionUUID = strings.ToUpper(req.SubstitutionUUID)
		current.CancelledAt = &cancelledAt
		current.UpdatedAt = c.now()
		if err := tx.Documents().Update(ctx, current); err != nil {
			return err
		}
		out.Document = current

		if current.Kind != sat.KindIncome || current.IsAdvance || current.SaleID == "" {
			return nil
		}
		cascade := tx.Savepoint(ctx, func(ctx context.Context) error {
			sale, err := tx.Sales().GetForUpdate(ctx, current.SaleID)
			if err != nil {
				return err
			}
			if sale == nil || sale.IsCancelled() {
				return nil
			}
			if err := tx.SaleCanceller().CancelSale(ctx, sale.ID, true); err != nil {
				return err
			}
			out.SaleCancelled = true
			return nil
		})
		if cascade != nil {
			out.SaleCancelled = false
			out.CascadeError = cascade.Error()
			c.log.Error().Str("document_id", documentID).Str("sale_id", current.SaleID).Err(cascade).
				Msg("CFDI cancelado pero la venta no se pudo cancelar")
		}
		return nil
	})
	if err != nil {
		c.log.Error().Str("document_id", documentID).Str("uuid", doc.UUID).Err(err).Msg("CFDI cancelado en el SAT pero no persistido")
		return nil, fmt.Errorf("persistir cancelación %s: %w", doc.UUID, err)
	}

	c.log.Info().Str("document_id", documentID).Str("uuid", doc.UUID).Str("motive", string(req.Motive)).
		Bool("sale_cancelled", out.SaleCancelled).Msg("CFDI cancelado")
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Consultas
// ═══════════════════════════════════════════════════════════════════════════════

// CertificateStatus estado del CSD configurado.
func (c *Coordinator) CertificateStatus() infracfdi.ValidationResult {
	return c.certs.Validate()
}

// Document devuelve el comprobante o ErrNotFound.
func (c *Coordinator) Document(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	var doc *entity.FiscalDocument
	err := c.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		d, err := tx.Documents().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return domain.NewFiscalError("consultar", domain.ErrNotFound, "comprobante "+id)
		}
		doc = d
		return nil
	})
	return doc, err
}

// DocumentXML devuelve el XML almacenado del comprobante.
func (c *Coordinator) DocumentXML(ctx context.Context, id string) ([]byte, *entity.FiscalDocument, error) {
	doc, err := c.Document(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if doc.XMLPath == "" {
		return nil, doc, domain.NewFiscalError("consultar", domain.ErrNotFound, "el comprobante no tiene XML")
	}
	payload, err := c.store.Load(doc.XMLPath)
	if err != nil {
		return nil, doc, err
	}
	return payload, doc, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func ensureNoLiveInvoice(ctx context.Context, tx FiscalTx, saleID string) error {
	docs, err := tx.Documents().ListBySale(ctx, saleID, sat.KindIncome)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.IsLive() && !d.IsAdvance {
			return domain.NewFiscalError("timbrar", domain.ErrDuplicateDocument,
				fmt.Sprintf("la venta ya tiene el comprobante %s (%s)", d.ID, d.Status))
		}
	}
	return nil
}

func loadCustomer(ctx context.Context, tx FiscalTx, id string) (*entity.Customer, error) {
	customer, err := tx.Customers().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.NewFiscalError("cliente", domain.ErrNotFound, "cliente "+id)
	}
	return customer, nil
}

// deferredInvoice la única factura PPD timbrada de la venta.
func deferredInvoice(ctx context.Context, tx FiscalTx, saleID string) (*entity.FiscalDocument, error) {
	docs, err := tx.Documents().ListBySale(ctx, saleID, sat.KindIncome)
	if err != nil {
		return nil, err
	}
	var found *entity.FiscalDocument
	for _, d := range docs {
		if d.Status != entity.StatusStamped || d.IsAdvance {
			continue
		}
		if found != nil {
			return nil, domain.NewFiscalError("complemento de pago", domain.ErrReferenceMissing, "la venta tiene más de una factura vigente")
		}
		found = d
	}
	if found == nil || found.PaymentMethod != sat.PaymentMethodDeferred {
		return nil, domain.NewFiscalError("complemento de pago", domain.ErrReferenceMissing, "la venta no tiene factura PPD timbrada")
	}
	return found, nil
}

// checkAdvanceRelation la relación 07 solo puede apuntar a anticipos timbrados y vigentes.
func (c *Coordinator) checkAdvanceRelation(ctx context.Context, tx FiscalTx, rel *entity.DocumentRelation) error {
	if rel == nil || rel.Type != sat.RelationAdvance {
		return nil
	}
	for _, u := range rel.UUIDs {
		d, err := tx.Documents().GetByUUID(ctx, strings.ToUpper(strings.TrimSpace(u)), false)
		if err != nil {
			return err
		}
		if d == nil || !d.IsAdvance || d.Status != entity.StatusStamped {
			return domain.NewFiscalError("timbrar", domain.ErrReferenceMissing, "anticipo "+u+" no encontrado o no vigente")
		}
	}
	return nil
}
