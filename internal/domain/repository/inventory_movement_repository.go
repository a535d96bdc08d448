package repository

import (
	"context"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
)

// InventoryMovementRepository movimientos de inventario ligados a una venta.
type InventoryMovementRepository interface {
	Create(ctx context.Context, movement *entity.InventoryMovement) error
	ListByTransaction(ctx context.Context, transactionID string) ([]*entity.InventoryMovement, error)
}
