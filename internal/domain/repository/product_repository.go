package repository

import (
	"context"

	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
)

// ProductRepository define el puerto de persistencia para Product (DIP).
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Product, error)
	GetByCompanyAndCode(ctx context.Context, companyID, code string) (*entity.Product, error)
	GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.Product, error)
	Update(ctx context.Context, product *entity.Product) error
	// AdjustStock suma delta al stock solo si el stock actual es expected.
	// Devuelve domain.ErrStockChanged si otro proceso lo modificó antes.
	AdjustStock(ctx context.Context, companyID, productID string, expected, delta int) error
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Product, error)
	ListAllByCompany(ctx context.Context, companyID string) ([]*entity.Product, error)
	CountLowStock(ctx context.Context, companyID string) (int, error)
	Delete(ctx context.Context, companyID, id string) error
}
