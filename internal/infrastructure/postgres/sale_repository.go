package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

const saleColumns = `id, company_id, customer_name, customer_email, customer_address, payment_method, total,
	COALESCE(created_by::text, ''), created_at, updated_at`

// SaleRepo implementación de SaleRepository (usable con pool o tx).
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

func scanSale(row pgx.Row) (*entity.Sale, error) {
	var s entity.Sale
	err := row.Scan(&s.ID, &s.CompanyID, &s.CustomerName, &s.CustomerEmail, &s.CustomerAddress,
		&s.PaymentMethod, &s.Total, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create persiste la cabecera de la venta.
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	query := `
		INSERT INTO sales (id, company_id, customer_name, customer_email, customer_address, payment_method, total, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.CompanyID, s.CustomerName, s.CustomerEmail, s.CustomerAddress, s.PaymentMethod,
		s.Total, s.CreatedBy, s.CreatedAt, s.UpdatedAt,
	)
	return mapError("insert sale", err)
}

// CreateItem persiste una línea de la venta.
func (r *SaleRepo) CreateItem(ctx context.Context, it *entity.SaleItem) error {
	query := `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query, it.ID, it.SaleID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal)
	return mapError("insert sale item", err)
}

// GetByID obtiene una venta de la empresa. nil, nil si no existe.
func (r *SaleRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE company_id = $1 AND id = $2`
	s, err := scanSale(r.q.QueryRow(ctx, query, companyID, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapError("get sale", err)
	}
	return s, nil
}

// GetItems devuelve las líneas de una venta.
func (r *SaleRepo) GetItems(ctx context.Context, saleID string) ([]*entity.SaleItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, subtotal
		  FROM sale_items WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, mapError("get sale items", err)
	}
	defer rows.Close()
	var list []*entity.SaleItem
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, mapError("scan sale item", err)
		}
		list = append(list, &it)
	}
	return list, mapError("get sale items", rows.Err())
}

// Update actualiza cabecera y total.
func (r *SaleRepo) Update(ctx context.Context, s *entity.Sale) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE sales
		   SET customer_name = $3, customer_email = $4, customer_address = $5,
		       payment_method = $6, total = $7, updated_at = $8
		 WHERE company_id = $1 AND id = $2`,
		s.CompanyID, s.ID, s.CustomerName, s.CustomerEmail, s.CustomerAddress,
		s.PaymentMethod, s.Total, s.UpdatedAt,
	)
	if err != nil {
		return mapError("update sale", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.E(domain.KindNotFound, "update sale", nil)
	}
	return nil
}

// DeleteItems elimina todas las líneas de una venta.
func (r *SaleRepo) DeleteItems(ctx context.Context, saleID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, saleID)
	return mapError("delete sale items", err)
}

// ListByCompany lista ventas de la empresa, más recientes primero.
func (r *SaleRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE company_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, mapError("list sales", err)
	}
	defer rows.Close()
	var list []*entity.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, mapError("scan sale", err)
		}
		list = append(list, s)
	}
	return list, mapError("list sales", rows.Err())
}

// SumTotals suma y cuenta las ventas en [from, to). COALESCE devuelve 0 sin ventas.
func (r *SaleRepo) SumTotals(ctx context.Context, companyID string, from, to time.Time) (decimal.Decimal, int, error) {
	var total decimal.Decimal
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(total), 0), count(*)
		  FROM sales
		 WHERE company_id = $1 AND created_at >= $2 AND created_at < $3`,
		companyID, from, to,
	).Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, mapError("sum sales", err)
	}
	return total, count, nil
}

// Reverse invoca reverse_sale. nil, nil si la venta no existe en la empresa.
func (r *SaleRepo) Reverse(ctx context.Context, companyID, saleID string) (*repository.ReverseResult, error) {
	var res repository.ReverseResult
	err := r.q.QueryRow(ctx,
		`SELECT sale_id::text, customer_deleted FROM reverse_sale($1, $2)`,
		companyID, saleID,
	).Scan(&res.SaleID, &res.CustomerDeleted)
	if err != nil {
		if isNoDataFound(err) || isNoRows(err) {
			return nil, nil
		}
		return nil, mapError("reverse sale", err)
	}
	return &res, nil
}
