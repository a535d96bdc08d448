package repository

import (
	"context"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
)

// SaleRepository lectura de ventas desde la capa de operación.
type SaleRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	// GetForUpdate bloquea la fila de la venta hasta el fin de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Sale, error)
}
