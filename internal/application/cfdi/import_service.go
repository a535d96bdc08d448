package cfdi

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/logger"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// ImportResult comprobante importado y pagos aplicados a cuentas por cobrar.
type ImportResult struct {
	Document        *entity.FiscalDocument
	Restored        bool // existía borrado lógicamente y se sobrescribió
	AppliedPayments int
	SkippedPayments int // documentos relacionados sin cuenta por cobrar
}

// ImportService registra CFDI timbrados por terceros (o por otro sistema) a partir de su XML.
type ImportService struct {
	tx     TxRunner
	parser DocumentParser
	store  PayloadStore
	log    *logger.Logger
	now    func() time.Time
}

// NewImportService construye el servicio. log puede ser nil.
func NewImportService(tx TxRunner, parser DocumentParser, store PayloadStore, log *logger.Logger) *ImportService {
	if log == nil {
		log = logger.Nop()
	}
	return &ImportService{tx: tx, parser: parser, store: store, log: log.WithComponent("cfdi-import"), now: time.Now}
}

// WithClock reemplaza el reloj (pruebas).
func (s *ImportService) WithClock(now func() time.Time) *ImportService {
	s.now = now
	return s
}

// Import parsea el XML, lo deduplica por folio fiscal y lo persiste junto con el archivo.
// Un folio vivo es ErrDuplicateDocument; uno borrado lógicamente se restaura con los datos nuevos.
// Los complementos de pago se aplican a las cuentas por cobrar dentro de la misma transacción.
func (s *ImportService) Import(ctx context.Context, raw []byte) (*ImportResult, error) {
	doc, err := s.parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	if doc.UUID == "" {
		return nil, domain.NewFiscalError("importar", domain.ErrInvalidInput, "el XML no trae TimbreFiscalDigital")
	}

	var (
		res      = &ImportResult{Document: doc}
		written  string
		previous []byte // XML que había en written antes de la restauración
	)
	err = s.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		written, previous = "", nil
		existing, err := tx.Documents().GetByUUID(ctx, doc.UUID, true)
		if err != nil {
			return err
		}
		if existing != nil && existing.DeletedAt == nil {
			return domain.NewFiscalError("importar", domain.ErrDuplicateDocument, "folio fiscal "+doc.UUID)
		}

		var prior []byte
		if existing != nil && existing.XMLPath != "" {
			prior, err = s.store.Load(existing.XMLPath)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		path, err := s.store.Save(doc, raw)
		if err != nil {
			return err
		}
		written = path
		if prior != nil && existing.XMLPath == path {
			previous = prior
		}
		doc.XMLPath = path
		now := s.now()
		doc.UpdatedAt = now

		if existing != nil {
			doc.ID = existing.ID
			doc.SaleID = existing.SaleID
			doc.ReceivableID = existing.ReceivableID
			doc.CreatedAt = existing.CreatedAt
			doc.DeletedAt = nil
			res.Restored = true
			if err := tx.Documents().Update(ctx, doc); err != nil {
				return err
			}
		} else {
			doc.ID = uuid.NewString()
			doc.CreatedAt = now
			if err := tx.Documents().Create(ctx, doc); err != nil {
				return err
			}
		}

		if doc.Kind != sat.KindPayment || doc.Payment == nil {
			return nil
		}
		for _, rel := range doc.Payment.Related {
			err := tx.PaymentApplier().ApplyPayment(ctx, PaymentApplication{
				PaymentDocumentID: doc.ID,
				RelatedUUID:       rel.DocumentUUID,
				Amount:            rel.AmountPaid,
				PaymentDate:       doc.Payment.PaymentDate,
				PaymentForm:       doc.Payment.PaymentForm,
				Partiality:        rel.Partiality,
			})
			if errors.Is(err, domain.ErrNotFound) {
				res.SkippedPayments++
				s.log.Warn().Str("uuid", doc.UUID).Str("related_uuid", rel.DocumentUUID).
					Msg("pago importado sin cuenta por cobrar, se omite")
				continue
			}
			if err != nil {
				return err
			}
			res.AppliedPayments++
		}
		return nil
	})
	if err != nil {
		s.discardPayload(doc.UUID, written, previous)
		s.log.Warn().Str("uuid", doc.UUID).Err(err).Msg("importación rechazada")
		return nil, err
	}

	s.log.Info().Str("document_id", doc.ID).Str("uuid", doc.UUID).Str("kind", string(doc.Kind)).
		Str("direction", string(doc.Direction)).Bool("restored", res.Restored).
		Int("payments_applied", res.AppliedPayments).Msg("CFDI importado")
	return res, nil
}

// discardPayload deshace la escritura de una importación fallida: devuelve el XML
// previo si se restauraba un folio borrado, o elimina el archivo nuevo.
func (s *ImportService) discardPayload(folio, written string, previous []byte) {
	if written == "" {
		return
	}
	if previous != nil {
		if err := s.store.Put(written, previous); err != nil {
			s.log.Error().Str("uuid", folio).Err(err).Msg("no se pudo reponer el XML previo tras una importación fallida")
		}
		return
	}
	if err := s.store.Remove(written); err != nil {
		s.log.Error().Str("uuid", folio).Err(err).Msg("no se pudo borrar el XML de una importación fallida")
	}
}

// Remove borra lógicamente un comprobante importado. Los emitidos desde una venta se cancelan, no se borran.
func (s *ImportService) Remove(ctx context.Context, id string) error {
	err := s.tx.RunFiscal(ctx, func(ctx context.Context, tx FiscalTx) error {
		doc, err := tx.Documents().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return domain.NewFiscalError("borrar", domain.ErrNotFound, "comprobante "+id)
		}
		if doc.SaleID != "" && doc.IsLive() {
			return domain.NewFiscalError("borrar", domain.ErrInvalidTransition, "un comprobante vigente de una venta se cancela, no se borra")
		}
		return tx.Documents().SoftDelete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("document_id", id).Msg("CFDI borrado")
	return nil
}
