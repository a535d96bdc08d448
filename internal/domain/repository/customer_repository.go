package repository

import (
	"context"

	"github.com/jhoicas/cfdi-engine/internal/domain/entity"
)

// CustomerRepository lectura del perfil fiscal de clientes.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
}
