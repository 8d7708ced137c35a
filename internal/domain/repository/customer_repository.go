package repository

import (
	"context"

	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
)

// CustomerRepository define el puerto de persistencia para Customer.
type CustomerRepository interface {
	GetByCompanyAndName(ctx context.Context, companyID, name string) (*entity.Customer, error)
	// Accumulate suma PurchaseCount y TotalPurchased de delta al cliente (CompanyID, Name)
	// en una sola sentencia, sin bajar de cero. Si no existe lo crea con delta.ID, salvo
	// que PurchaseCount <= 0. Email y Address vacíos conservan los guardados.
	Accumulate(ctx context.Context, delta *entity.Customer) error
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Customer, error)
}
