package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/cfdi-engine/internal/application/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
)

var _ cfdi.SaleCanceller = (*SaleCanceller)(nil)

// SaleCanceller cancela la venta en la capa de operación: la venta, su cuenta por cobrar,
// los pagos aplicados y las salidas de inventario (se revierten con entradas).
type SaleCanceller struct {
	q         Querier
	movements *InventoryMovementRepo
	now       func() time.Time
}

// NewSaleCanceller construye el colaborador. Debe recibir la tx del comprobante.
func NewSaleCanceller(q Querier) *SaleCanceller {
	return &SaleCanceller{q: q, movements: NewInventoryMovementRepository(q), now: time.Now}
}

// CancelSale marca la venta como cancelada. Con pagos aplicados exige forceWithPayments.
func (c *SaleCanceller) CancelSale(ctx context.Context, saleID string, forceWithPayments bool) error {
	tag, err := c.q.Exec(ctx,
		`UPDATE sales SET status = $2, updated_at = now() WHERE id = $1 AND status <> $2`,
		saleID, entity.SaleStatusCancelled)
	if err != nil {
		return fmt.Errorf("cancel sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// ya cancelada o inexistente: nada que revertir
		return nil
	}

	var applied int
	err = c.q.QueryRow(ctx, `
		SELECT count(*) FROM receivable_payments p
		JOIN receivables r ON r.id = p.receivable_id
		WHERE r.sale_id = $1 AND p.status = 'APPLIED'`, saleID).Scan(&applied)
	if err != nil {
		return fmt.Errorf("count applied payments: %w", err)
	}
	if applied > 0 && !forceWithPayments {
		return domain.NewFiscalError("cancelar venta", domain.ErrInvalidTransition,
			fmt.Sprintf("la venta %s tiene %d pagos aplicados", saleID, applied))
	}

	if _, err := c.q.Exec(ctx, `
		UPDATE receivable_payments SET status = 'REVERSED'
		WHERE status = 'APPLIED' AND receivable_id IN (SELECT id FROM receivables WHERE sale_id = $1)`, saleID); err != nil {
		return fmt.Errorf("reverse payments: %w", err)
	}
	if _, err := c.q.Exec(ctx,
		`UPDATE receivables SET status = $2, updated_at = now() WHERE sale_id = $1`,
		saleID, entity.ReceivableCancelled); err != nil {
		return fmt.Errorf("cancel receivable: %w", err)
	}
	return c.reverseStock(ctx, saleID)
}

// reverseStock registra una entrada por cada salida de la venta.
func (c *SaleCanceller) reverseStock(ctx context.Context, saleID string) error {
	movements, err := c.movements.ListByTransaction(ctx, saleID)
	if err != nil {
		return err
	}
	now := c.now()
	for _, m := range movements {
		if m.Type != entity.MovementTypeOUT {
			continue
		}
		reversal := &entity.InventoryMovement{
			TransactionID: saleID,
			ProductID:     m.ProductID,
			WarehouseID:   m.WarehouseID,
			Type:          entity.MovementTypeIN,
			Quantity:      m.Quantity,
			UnitCost:      m.UnitCost,
			TotalCost:     m.TotalCost,
			Date:          now,
			CreatedAt:     now,
			CreatedBy:     m.CreatedBy,
		}
		if err := c.movements.Create(ctx, reversal); err != nil {
			return err
		}
	}
	return nil
}
