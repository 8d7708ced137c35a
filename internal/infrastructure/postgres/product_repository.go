package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

const productColumns = `id, company_id, code, name, price, stock, min_stock, category_id, supplier_id, created_at, updated_at`

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.CompanyID, &p.Code, &p.Name, &p.Price, &p.Stock, &p.MinStock,
		&p.CategoryID, &p.SupplierID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create persiste un nuevo producto.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.CompanyID, p.Code, p.Name, p.Price, p.Stock, p.MinStock,
		p.CategoryID, p.SupplierID, p.CreatedAt, p.UpdatedAt,
	)
	return mapError("insert product", err)
}

// GetByID obtiene un producto de la empresa. nil, nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE company_id = $1 AND id = $2`
	p, err := scanProduct(r.q.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapError("get product", err)
	}
	return p, nil
}

// GetByCompanyAndCode obtiene un producto por empresa y código.
func (r *ProductRepo) GetByCompanyAndCode(ctx context.Context, companyID, code string) (*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE company_id = $1 AND code = $2`
	p, err := scanProduct(r.q.QueryRow(ctx, query, companyID, code))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapError("get product by code", err)
	}
	return p, nil
}

// GetByIDs lee varios productos de la empresa en una sola consulta.
// Los ids ausentes (o de otra empresa) no aparecen en el mapa.
func (r *ProductRepo) GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.Product, error) {
	out := make(map[string]*entity.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE company_id = $1 AND id::text = ANY($2)`
	rows, err := r.q.Query(ctx, query, companyID, ids)
	if err != nil {
		return nil, mapError("get products", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapError("scan product", err)
		}
		out[p.ID] = p
	}
	return out, mapError("get products", rows.Err())
}

// Update actualiza los datos descriptivos. El stock solo cambia vía AdjustStock.
func (r *ProductRepo) Update(ctx context.Context, p *entity.Product) error {
	query := `
		UPDATE products
		   SET name = $3, price = $4, min_stock = $5, category_id = $6, supplier_id = $7, updated_at = $8
		 WHERE company_id = $1 AND id = $2`
	cmd, err := r.q.Exec(ctx, query,
		p.CompanyID, p.ID, p.Name, p.Price, p.MinStock, p.CategoryID, p.SupplierID, p.UpdatedAt,
	)
	if err != nil {
		return mapError("update product", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.E(domain.KindNotFound, "update product", nil)
	}
	return nil
}

// AdjustStock suma delta al stock solo si sigue valiendo expected.
func (r *ProductRepo) AdjustStock(ctx context.Context, companyID, productID string, expected, delta int) error {
	const op = "adjust stock"
	cmd, err := r.q.Exec(ctx, `
		UPDATE products SET stock = stock + $4, updated_at = now()
		 WHERE company_id = $1 AND id = $2 AND stock = $3`,
		companyID, productID, expected, delta,
	)
	if err != nil {
		return mapError(op, err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}
	var current int
	err = r.q.QueryRow(ctx, `SELECT stock FROM products WHERE company_id = $1 AND id = $2`, companyID, productID).Scan(&current)
	if isNoRows(err) {
		return domain.E(domain.KindNotFound, op, fmt.Errorf("%w: producto %s", domain.ErrNotFound, productID))
	}
	if err != nil {
		return mapError(op, err)
	}
	return domain.E(domain.KindConflict, op,
		fmt.Errorf("%w: producto %s (esperado %d, actual %d)", domain.ErrStockChanged, productID, expected, current))
}

// ListByCompany lista productos por empresa con paginación, ordenados por código.
func (r *ProductRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE company_id = $1 ORDER BY code LIMIT $2 OFFSET $3`
	return r.list(ctx, query, companyID, limit, offset)
}

// ListAllByCompany lista todos los productos de la empresa.
func (r *ProductRepo) ListAllByCompany(ctx context.Context, companyID string) ([]*entity.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE company_id = $1 ORDER BY code`
	return r.list(ctx, query, companyID)
}

func (r *ProductRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list products", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapError("scan product", err)
		}
		list = append(list, p)
	}
	return list, mapError("list products", rows.Err())
}

// CountLowStock cuenta productos con stock mínimo definido y stock <= mínimo.
func (r *ProductRepo) CountLowStock(ctx context.Context, companyID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM products WHERE company_id = $1 AND min_stock > 0 AND stock <= min_stock`,
		companyID,
	).Scan(&n)
	if err != nil {
		return 0, mapError("count low stock", err)
	}
	return n, nil
}

// Delete elimina un producto. Si tiene ventas asociadas devuelve un conflicto.
func (r *ProductRepo) Delete(ctx context.Context, companyID, id string) error {
	cmd, err := r.q.Exec(ctx, `DELETE FROM products WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return mapError("delete product", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.E(domain.KindNotFound, "delete product", nil)
	}
	return nil
}
