package cfdi

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/internal/domain/repository"
	infracfdi "github.com/jhoicas/cfdi-engine/internal/infrastructure/cfdi"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// RemoteSigner PAC (SOAP) o MockSigner en modo dev.
type RemoteSigner = infracfdi.RemoteSigner

// CertificateSource carga el CSD en cada operación; nunca se guarda entre solicitudes.
type CertificateSource interface {
	LoadSigningCertificate() (*infracfdi.Certificate, error)
	LoadSigningKey() (*infracfdi.KeyMaterial, error)
	Validate() infracfdi.ValidationResult
}

// DocumentRenderer convierte el borrador en XML sin sellar.
type DocumentRenderer interface {
	Render(doc *entity.FiscalDocument) ([]byte, error)
}

// DocumentSealer agrega NoCertificado, Certificado y Sello.
type DocumentSealer interface {
	Seal(xml []byte, cert *infracfdi.Certificate, key *infracfdi.KeyMaterial) (*infracfdi.SealResult, error)
}

// DocumentParser lee un XML ajeno al modelo interno.
type DocumentParser interface {
	Parse(raw []byte) (*entity.FiscalDocument, error)
}

// PayloadStore almacén de XML por año/mes/dirección.
type PayloadStore interface {
	Save(doc *entity.FiscalDocument, payload []byte) (string, error)
	Put(path string, payload []byte) error
	Load(path string) ([]byte, error)
	Remove(path string) error
}

// SaleCanceller colaborador de la capa de operación que cancela la venta
// (inventario, cuenta por cobrar y pagos aplicados).
type SaleCanceller interface {
	CancelSale(ctx context.Context, saleID string, forceWithPayments bool) error
}

// PaymentApplication un pago que un complemento documenta sobre una factura PPD.
type PaymentApplication struct {
	PaymentDocumentID string
	RelatedUUID       string // folio fiscal de la factura pagada
	Amount            decimal.Decimal
	PaymentDate       time.Time
	PaymentForm       sat.PaymentForm
	Partiality        int
}

// PaymentApplier aplica un pago a la cuenta por cobrar de la factura relacionada.
// Devuelve domain.ErrNotFound si no hay cuenta por cobrar para ese folio.
type PaymentApplier interface {
	ApplyPayment(ctx context.Context, p PaymentApplication) error
}

// FiscalTx repositorios y colaboradores atados a una misma transacción.
type FiscalTx interface {
	Documents() repository.FiscalDocumentRepository
	Sales() repository.SaleRepository
	Customers() repository.CustomerRepository
	Receivables() repository.ReceivableRepository
	SaleCanceller() SaleCanceller
	PaymentApplier() PaymentApplier
	// Savepoint ejecuta fn en un punto de guardado: si fn falla solo se revierte lo hecho dentro.
	Savepoint(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxRunner abre la transacción, ejecuta fn y hace commit o rollback.
type TxRunner interface {
	RunFiscal(ctx context.Context, fn func(ctx context.Context, tx FiscalTx) error) error
}
