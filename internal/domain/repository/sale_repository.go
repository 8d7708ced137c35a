package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
)

// ReverseResult resultado del procedimiento de reversión de una venta.
type ReverseResult struct {
	SaleID          string
	CustomerDeleted bool
}

// SaleRepository define el puerto de persistencia para Sale y sus ítems.
type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	CreateItem(ctx context.Context, item *entity.SaleItem) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Sale, error)
	GetItems(ctx context.Context, saleID string) ([]*entity.SaleItem, error)
	Update(ctx context.Context, sale *entity.Sale) error
	DeleteItems(ctx context.Context, saleID string) error
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Sale, error)
	SumTotals(ctx context.Context, companyID string, from, to time.Time) (decimal.Decimal, int, error)
	// Reverse invoca el procedimiento atómico del servidor: restaura stock,
	// elimina la venta con sus ítems y el cliente si no tiene otras ventas.
	Reverse(ctx context.Context, companyID, saleID string) (*ReverseResult, error)
}
