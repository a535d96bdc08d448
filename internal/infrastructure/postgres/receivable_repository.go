package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/cfdi-engine/internal/domain"
	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/internal/domain/repository"
)

var _ repository.ReceivableRepository = (*ReceivableRepo)(nil)

const receivableColumns = `id, sale_id, customer_id, total, paid, partiality_count, status, created_at, updated_at`

// ReceivableRepo cuentas por cobrar sobre PostgreSQL (usable con pool o tx).
type ReceivableRepo struct {
	q Querier
}

// NewReceivableRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReceivableRepository(q Querier) *ReceivableRepo {
	return &ReceivableRepo{q: q}
}

func (r *ReceivableRepo) GetByID(ctx context.Context, id string) (*entity.Receivable, error) {
	return r.get(ctx, `SELECT `+receivableColumns+` FROM receivables WHERE id = $1`, id)
}

// GetBySale la cuenta por cobrar más reciente de la venta.
func (r *ReceivableRepo) GetBySale(ctx context.Context, saleID string) (*entity.Receivable, error) {
	return r.get(ctx, `SELECT `+receivableColumns+` FROM receivables WHERE sale_id = $1 ORDER BY created_at DESC LIMIT 1`, saleID)
}

// IncrementPartiality suma uno al contador de parcialidades.
func (r *ReceivableRepo) IncrementPartiality(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE receivables SET partiality_count = partiality_count + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment partiality: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("increment partiality %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *ReceivableRepo) get(ctx context.Context, query, arg string) (*entity.Receivable, error) {
	var rc entity.Receivable
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&rc.ID, &rc.SaleID, &rc.CustomerID, &rc.Total, &rc.Paid, &rc.PartialityCount, &rc.Status,
		&rc.CreatedAt, &rc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get receivable: %w", err)
	}
	return &rc, nil
}
