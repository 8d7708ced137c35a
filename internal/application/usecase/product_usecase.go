package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// Roles que pueden modificar el catálogo y el stock.
var productWriters = []string{entity.RoleAdmin, entity.RoleBodeguero}

// ProductUseCase casos de uso CRUD para productos y edición directa de stock.
// El stock solo cambia con AdjustStock (guardia optimista) para no pisar ventas concurrentes.
type ProductUseCase struct {
	repo repository.ProductRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(repo repository.ProductRepository, log zerolog.Logger) *ProductUseCase {
	return &ProductUseCase{repo: repo, log: log, now: time.Now}
}

func canWrite(op string, sess domain.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if !sess.HasRole(productWriters...) {
		return domain.E(domain.KindPermissionDenied, op, nil)
	}
	return nil
}

// Create crea un nuevo producto. El código es único por empresa.
func (uc *ProductUseCase) Create(ctx context.Context, sess domain.Session, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	const op = "products.Create"
	if err := canWrite(op, sess); err != nil {
		return nil, err
	}
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateProduct(in); err != nil {
		return nil, err
	}
	existing, err := uc.repo.GetByCompanyAndCode(ctx, sess.CompanyID, in.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.E(domain.KindConflict, op, fmt.Errorf("%w: código %s", domain.ErrDuplicate, in.Code))
	}
	now := uc.now()
	product := &entity.Product{
		ID:         uuid.New().String(),
		CompanyID:  sess.CompanyID,
		Code:       in.Code,
		Name:       in.Name,
		Price:      in.Price,
		Stock:      in.Stock,
		MinStock:   in.MinStock,
		CategoryID: in.CategoryID,
		SupplierID: in.SupplierID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	return toProductResponse(product), nil
}

func validateProduct(in dto.CreateProductRequest) error {
	return checkPrice(dto.Validate(in), in.Price)
}

// checkPrice agrega a err el problema del precio, si lo hay.
func checkPrice(err error, price decimal.Decimal) error {
	if price.IsNegative() {
		return mergeField(err, "price", "debe ser mayor o igual a 0")
	}
	if msg := dto.MoneyIssue(price); msg != "" {
		return mergeField(err, "price", msg)
	}
	return err
}

// mergeField agrega un campo inválido a err (nil o ValidationError).
func mergeField(err error, field, msg string) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		if _, ok := ve.Fields[field]; !ok {
			ve.Fields[field] = msg
		}
		return ve
	}
	if err != nil {
		return err
	}
	return domain.NewValidation(field, msg)
}

// GetByID obtiene un producto de la empresa de la sesión.
func (uc *ProductUseCase) GetByID(ctx context.Context, sess domain.Session, id string) (*dto.ProductResponse, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	p, err := uc.get(ctx, "products.GetByID", sess.CompanyID, id)
	if err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

func (uc *ProductUseCase) get(ctx context.Context, op, companyID, id string) (*entity.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.NewValidation("id", "debe ser un UUID")
	}
	p, err := uc.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.E(domain.KindNotFound, op, nil)
	}
	return p, nil
}

// Update actualiza datos del producto. No toca el stock (ver SetStock).
func (uc *ProductUseCase) Update(ctx context.Context, sess domain.Session, id string, in dto.UpdateProductRequest) (*dto.ProductResponse, error) {
	const op = "products.Update"
	if err := canWrite(op, sess); err != nil {
		return nil, err
	}
	err := dto.Validate(in)
	if in.Price != nil {
		err = checkPrice(err, *in.Price)
	}
	if err != nil {
		return nil, err
	}
	p, err := uc.get(ctx, op, sess.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.MinStock != nil {
		p.MinStock = *in.MinStock
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
	if in.SupplierID != nil {
		p.SupplierID = *in.SupplierID
	}
	p.UpdatedAt = uc.now()
	if err := uc.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// SetStock fija el stock desde inventario. Falla con ErrStockChanged si una venta
// lo modificó entre la lectura y la escritura.
func (uc *ProductUseCase) SetStock(ctx context.Context, sess domain.Session, id string, in dto.UpdateStockRequest) (*dto.ProductResponse, error) {
	const op = "products.SetStock"
	if err := canWrite(op, sess); err != nil {
		return nil, err
	}
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	p, err := uc.get(ctx, op, sess.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if delta := in.Stock - p.Stock; delta != 0 {
		if err := uc.repo.AdjustStock(ctx, sess.CompanyID, p.ID, p.Stock, delta); err != nil {
			return nil, err
		}
		uc.log.Info().Str("product_id", p.ID).Int("from", p.Stock).Int("to", in.Stock).Msg("stock editado")
		p.Stock = in.Stock
		p.UpdatedAt = uc.now()
	}
	return toProductResponse(p), nil
}

// List lista productos por empresa con paginación.
func (uc *ProductUseCase) List(ctx context.Context, sess domain.Session, page dto.PageRequest) (*dto.ProductListResponse, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	page.DefaultPage()
	list, err := uc.repo.ListByCompany(ctx, sess.CompanyID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		items = append(items, *toProductResponse(p))
	}
	return &dto.ProductListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

// Delete elimina un producto. Si tiene ventas registradas el repositorio devuelve conflicto.
func (uc *ProductUseCase) Delete(ctx context.Context, sess domain.Session, id string) error {
	const op = "products.Delete"
	if err := canWrite(op, sess); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.NewValidation("id", "debe ser un UUID")
	}
	return uc.repo.Delete(ctx, sess.CompanyID, id)
}

// Import crea o actualiza productos por código. Las filas inválidas se reportan
// y no detienen la importación; un error de infraestructura sí la detiene.
func (uc *ProductUseCase) Import(ctx context.Context, sess domain.Session, rows []dto.CreateProductRequest) (*dto.ImportResult, error) {
	const op = "products.Import"
	if err := canWrite(op, sess); err != nil {
		return nil, err
	}
	res := &dto.ImportResult{}
	for i, in := range rows {
		line := i + 1
		in.Code = strings.TrimSpace(in.Code)
		in.Name = strings.TrimSpace(in.Name)
		if err := validateProduct(in); err != nil {
			res.Errors = append(res.Errors, dto.ImportRowError{Line: line, Code: in.Code, Message: err.Error()})
			continue
		}
		existing, err := uc.repo.GetByCompanyAndCode(ctx, sess.CompanyID, in.Code)
		if err != nil {
			return res, err
		}
		if existing == nil {
			if _, err := uc.Create(ctx, sess, in); err != nil {
				if domain.KindOf(err) == domain.KindInternal || domain.KindOf(err) == domain.KindUnavailable {
					return res, err
				}
				res.Errors = append(res.Errors, dto.ImportRowError{Line: line, Code: in.Code, Message: err.Error()})
				continue
			}
			res.Created++
			continue
		}
		existing.Name = in.Name
		existing.Price = in.Price
		existing.MinStock = in.MinStock
		existing.UpdatedAt = uc.now()
		if err := uc.repo.Update(ctx, existing); err != nil {
			return res, err
		}
		if delta := in.Stock - existing.Stock; delta != 0 {
			if err := uc.repo.AdjustStock(ctx, sess.CompanyID, existing.ID, existing.Stock, delta); err != nil {
				res.Errors = append(res.Errors, dto.ImportRowError{Line: line, Code: in.Code, Message: err.Error()})
				continue
			}
		}
		res.Updated++
	}
	uc.log.Info().Int("created", res.Created).Int("updated", res.Updated).Int("errors", len(res.Errors)).
		Msg("importación de productos")
	return res, nil
}

func toProductResponse(p *entity.Product) *dto.ProductResponse {
	if p == nil {
		return nil
	}
	return &dto.ProductResponse{
		ID:         p.ID,
		CompanyID:  p.CompanyID,
		Code:       p.Code,
		Name:       p.Name,
		Price:      p.Price,
		Stock:      p.Stock,
		MinStock:   p.MinStock,
		CategoryID: p.CategoryID,
		SupplierID: p.SupplierID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}
