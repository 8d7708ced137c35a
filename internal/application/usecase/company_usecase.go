package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// CompanyUseCase alta y consulta de empresas (tenants).
type CompanyUseCase struct {
	repo repository.CompanyRepository
}

// NewCompanyUseCase construye el caso de uso con el puerto de persistencia.
func NewCompanyUseCase(repo repository.CompanyRepository) *CompanyUseCase {
	return &CompanyUseCase{repo: repo}
}

// Create registra una empresa nueva con estado active.
func (uc *CompanyUseCase) Create(ctx context.Context, in dto.CreateCompanyRequest) (*dto.CompanyResponse, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.NIT = strings.TrimSpace(in.NIT)
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	now := time.Now()
	company := &entity.Company{
		ID:        uuid.New().String(),
		Name:      in.Name,
		NIT:       in.NIT,
		Address:   in.Address,
		Phone:     in.Phone,
		Email:     in.Email,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, company); err != nil {
		return nil, err
	}
	return toCompanyResponse(company), nil
}

// Current devuelve la empresa de la sesión.
func (uc *CompanyUseCase) Current(ctx context.Context, sess domain.Session) (*dto.CompanyResponse, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	company, err := uc.repo.GetByID(ctx, sess.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.E(domain.KindNotFound, "companies.Current", nil)
	}
	return toCompanyResponse(company), nil
}

func toCompanyResponse(c *entity.Company) *dto.CompanyResponse {
	return &dto.CompanyResponse{
		ID:        c.ID,
		Name:      c.Name,
		NIT:       c.NIT,
		Address:   c.Address,
		Phone:     c.Phone,
		Email:     c.Email,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
