package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

const customerColumns = `id, company_id, name, email, address, total_purchased, purchase_count, created_at, updated_at`

// CustomerRepo implementación de CustomerRepository (usable con pool o tx).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

func scanCustomer(row pgx.Row) (*entity.Customer, error) {
	var c entity.Customer
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Address,
		&c.TotalPurchased, &c.PurchaseCount, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByCompanyAndName obtiene un cliente por empresa y nombre.
func (r *CustomerRepo) GetByCompanyAndName(ctx context.Context, companyID, name string) (*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE company_id = $1 AND name = $2`
	c, err := scanCustomer(r.q.QueryRow(ctx, query, companyID, name))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapError("get customer", err)
	}
	return c, nil
}

// Accumulate aplica los acumulados con INSERT ... ON CONFLICT para que dos ventas
// simultáneas del mismo cliente no se pisen.
func (r *CustomerRepo) Accumulate(ctx context.Context, d *entity.Customer) error {
	if d.PurchaseCount <= 0 {
		_, err := r.q.Exec(ctx, `
			UPDATE customers
			   SET purchase_count  = GREATEST(purchase_count + $3, 0),
			       total_purchased = GREATEST(total_purchased + $4, 0),
			       email           = COALESCE(NULLIF($5, ''), email),
			       address         = COALESCE(NULLIF($6, ''), address),
			       updated_at      = $7
			 WHERE company_id = $1 AND name = $2`,
			d.CompanyID, d.Name, d.PurchaseCount, d.TotalPurchased, d.Email, d.Address, d.UpdatedAt,
		)
		return mapError("accumulate customer", err)
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, GREATEST($6::numeric, 0), $7, $8, $8)
		ON CONFLICT (company_id, name) DO UPDATE
		   SET purchase_count  = GREATEST(customers.purchase_count + EXCLUDED.purchase_count, 0),
		       total_purchased = GREATEST(customers.total_purchased + $6::numeric, 0),
		       email           = COALESCE(NULLIF(EXCLUDED.email, ''), customers.email),
		       address         = COALESCE(NULLIF(EXCLUDED.address, ''), customers.address),
		       updated_at      = EXCLUDED.updated_at`,
		d.ID, d.CompanyID, d.Name, d.Email, d.Address, d.TotalPurchased, d.PurchaseCount, d.UpdatedAt,
	)
	return mapError("accumulate customer", err)
}

// ListByCompany lista clientes por mayor total comprado.
func (r *CustomerRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE company_id = $1
		ORDER BY total_purchased DESC, name LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, mapError("list customers", err)
	}
	defer rows.Close()
	var list []*entity.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, mapError("scan customer", err)
		}
		list = append(list, c)
	}
	return list, mapError("list customers", rows.Err())
}
