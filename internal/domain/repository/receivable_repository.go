package repository

import (
	"context"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
)

// ReceivableRepository cuentas por cobrar que el motor lee y cuya parcialidad incrementa.
type ReceivableRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Receivable, error)
	GetBySale(ctx context.Context, saleID string) (*entity.Receivable, error)
	// IncrementPartiality suma uno al contador de parcialidades documentadas.
	IncrementPartiality(ctx context.Context, id string) error
}
