package postgres

import (
	"context"

	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

var _ repository.AlertRepository = (*AlertRepo)(nil)

// AlertRepo lectura y marcado de alertas. Las filas las inserta el trigger products_stock_alert.
type AlertRepo struct {
	q Querier
}

// NewAlertRepository construye el adaptador.
func NewAlertRepository(q Querier) *AlertRepo {
	return &AlertRepo{q: q}
}

// ListRecent devuelve las últimas limit alertas de la empresa.
func (r *AlertRepo) ListRecent(ctx context.Context, companyID string, limit int) ([]*entity.Alert, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, company_id, COALESCE(product_id::text, ''), type, title, message, read, created_at
		  FROM alerts
		 WHERE company_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, mapError("list alerts", err)
	}
	defer rows.Close()
	var list []*entity.Alert
	for rows.Next() {
		var a entity.Alert
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.ProductID, &a.Type, &a.Title, &a.Message, &a.Read, &a.CreatedAt); err != nil {
			return nil, mapError("scan alert", err)
		}
		list = append(list, &a)
	}
	return list, mapError("list alerts", rows.Err())
}

// MarkRead marca una alerta como leída. Un id inexistente no es error.
func (r *AlertRepo) MarkRead(ctx context.Context, companyID, id string) error {
	_, err := r.q.Exec(ctx, `UPDATE alerts SET read = true WHERE company_id = $1 AND id = $2`, companyID, id)
	return mapError("mark alert read", err)
}

// MarkAllRead marca todas las alertas de la empresa como leídas.
func (r *AlertRepo) MarkAllRead(ctx context.Context, companyID string) error {
	_, err := r.q.Exec(ctx, `UPDATE alerts SET read = true WHERE company_id = $1 AND NOT read`, companyID)
	return mapError("mark all alerts read", err)
}
