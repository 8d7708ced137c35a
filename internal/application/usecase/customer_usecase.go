package usecase

import (
	"context"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// CustomerUseCase consulta de clientes. Los clientes se crean y acumulan desde las ventas.
type CustomerUseCase struct {
	repo repository.CustomerRepository
}

// NewCustomerUseCase construye el caso de uso.
func NewCustomerUseCase(repo repository.CustomerRepository) *CustomerUseCase {
	return &CustomerUseCase{repo: repo}
}

// List lista los clientes de la empresa por mayor total comprado.
func (uc *CustomerUseCase) List(ctx context.Context, sess domain.Session, page dto.PageRequest) (*dto.CustomerListResponse, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, err := uc.repo.ListByCompany(ctx, sess.CompanyID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := &dto.CustomerListResponse{
		Items: make([]dto.CustomerResponse, 0, len(list)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, c := range list {
		out.Items = append(out.Items, dto.CustomerResponse{
			ID:             c.ID,
			Name:           c.Name,
			Email:          c.Email,
			Address:        c.Address,
			TotalPurchased: c.TotalPurchased,
			PurchaseCount:  c.PurchaseCount,
			UpdatedAt:      c.UpdatedAt,
		})
	}
	return out, nil
}
