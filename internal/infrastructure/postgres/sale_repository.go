package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
	"github.com/jhoicas/cfdi-engine/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

const saleColumns = `
	id, customer_id, status, method, payment_method, payment_form, is_credit, currency, exchange_rate,
	tax_rate, retained_vat_rate, retained_income_rate, subtotal, discount, tax, total, date, created_at, updated_at`

// SaleRepo lectura de ventas con sus renglones.
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// GetByID obtiene la venta y sus renglones.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	return r.get(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
}

// GetForUpdate igual que GetByID pero bloquea la fila hasta el fin de la transacción.
func (r *SaleRepo) GetForUpdate(ctx context.Context, id string) (*entity.Sale, error) {
	return r.get(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id)
}

func (r *SaleRepo) get(ctx context.Context, query, id string) (*entity.Sale, error) {
	var s entity.Sale
	err := r.q.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.CustomerID, &s.Status, &s.Method, &s.PaymentMethod, &s.PaymentForm, &s.IsCredit,
		&s.Currency, &s.ExchangeRate, &s.TaxRate, &s.RetainedVATRate, &s.RetainedIncomeRate,
		&s.Subtotal, &s.Discount, &s.Tax, &s.Total, &s.Date, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	lines, err := r.lines(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Lines = lines
	return &s, nil
}

func (r *SaleRepo) lines(ctx context.Context, saleID string) ([]entity.SaleLine, error) {
	query := `
		SELECT product_id, sku, description, product_key, unit_key, unit_name, quantity, unit_price, discount, tax_object
		FROM sale_lines WHERE sale_id = $1 ORDER BY line_no`
	rows, err := r.q.Query(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("list sale lines: %w", err)
	}
	defer rows.Close()
	var list []entity.SaleLine
	for rows.Next() {
		var l entity.SaleLine
		if err := rows.Scan(&l.ProductID, &l.SKU, &l.Description, &l.ProductKey, &l.UnitKey, &l.UnitName,
			&l.Quantity, &l.UnitPrice, &l.Discount, &l.TaxObject); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
