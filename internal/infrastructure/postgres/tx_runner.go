package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/cfdi-engine/internal/application/cfdi"
	"github.com/jhoicas/cfdi-engine/internal/domain/repository"
)

var _ cfdi.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunFiscal inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) RunFiscal(ctx context.Context, fn func(ctx context.Context, tx cfdi.FiscalTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &fiscalTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// fiscalTx repos construidos sobre la misma pgx.Tx.
type fiscalTx struct {
	tx pgx.Tx
}

func (t *fiscalTx) Documents() repository.FiscalDocumentRepository {
	return NewFiscalDocumentRepository(t.tx)
}
func (t *fiscalTx) Sales() repository.SaleRepository { return NewSaleRepository(t.tx) }
func (t *fiscalTx) Customers() repository.CustomerRepository {
	return NewCustomerRepository(t.tx)
}
func (t *fiscalTx) Receivables() repository.ReceivableRepository {
	return NewReceivableRepository(t.tx)
}
func (t *fiscalTx) SaleCanceller() cfdi.SaleCanceller   { return NewSaleCanceller(t.tx) }
func (t *fiscalTx) PaymentApplier() cfdi.PaymentApplier { return NewPaymentApplier(t.tx) }

// Savepoint abre una transacción anidada (SAVEPOINT en pgx) sobre la actual.
func (t *fiscalTx) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	defer func() { _ = sp.Rollback(ctx) }()

	if err := fn(ctx); err != nil {
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
