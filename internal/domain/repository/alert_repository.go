package repository

import (
	"context"

	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
)

// AlertRepository define el puerto de persistencia para las alertas.
type AlertRepository interface {
	ListRecent(ctx context.Context, companyID string, limit int) ([]*entity.Alert, error)
	MarkRead(ctx context.Context, companyID, id string) error
	MarkAllRead(ctx context.Context, companyID string) error
}
