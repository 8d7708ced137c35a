// Package realtime reparte eventos de cambio de filas a los suscriptores
// interesados en una tabla y empresa.
package realtime

import (
	"context"

	"github.com/jhoicas/gestion-pyme/internal/domain"
)

// Handler recibe un evento de cambio.
type Handler = func(domain.ChangeEvent)

// Publisher publica eventos de cambio.
type Publisher interface {
	Publish(ctx context.Context, ev domain.ChangeEvent) error
}

// Channel suscripción filtrada por tabla y empresa. La función devuelta cancela.
type Channel interface {
	Subscribe(ctx context.Context, table, companyID string, fn Handler) (func(), error)
}

// Bus publica y reparte.
type Bus interface {
	Publisher
	Channel
	Close() error
}
