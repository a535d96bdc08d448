package repository

import (
	"context"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/pkg/sat"
)

// FiscalDocumentRepository define el puerto de persistencia para comprobantes y sus conceptos.
// Los métodos Get devuelven (nil, nil) cuando no hay registro.
type FiscalDocumentRepository interface {
	// Create inserta cabecera y conceptos. Devuelve domain.ErrDuplicateDocument si ya hay un
	// comprobante de ingreso vivo para la venta o si el folio fiscal ya existe.
	Create(ctx context.Context, doc *entity.FiscalDocument) error
	// Update sobrescribe cabecera y reemplaza conceptos (timbrado, cancelación, restauración).
	Update(ctx context.Context, doc *entity.FiscalDocument) error
	// Delete elimina físicamente un borrador que nunca llegó al PAC.
	Delete(ctx context.Context, id string) error
	// SoftDelete marca deleted_at; el folio fiscal sigue reservado para una restauración.
	SoftDelete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	// GetByUUID busca por folio fiscal; includeDeleted incluye los borrados lógicamente.
	GetByUUID(ctx context.Context, uuid string, includeDeleted bool) (*entity.FiscalDocument, error)
	// ListBySale comprobantes no borrados de la venta, del más antiguo al más reciente.
	ListBySale(ctx context.Context, saleID string, kind sat.DocumentKind) ([]*entity.FiscalDocument, error)
	// NextFolio reserva el siguiente folio de la serie.
	NextFolio(ctx context.Context, series string) (int64, error)
}
