package alerts

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// Hub crea y mantiene un Center por empresa, arrancado bajo demanda.
type Hub struct {
	ctx      context.Context
	cancel   context.CancelFunc
	alerts   repository.AlertRepository
	products repository.ProductRepository
	feed     ChangeFeed
	cfg      Config
	log      zerolog.Logger

	mu      sync.Mutex
	centers map[string]*hubEntry
	wg      sync.WaitGroup
}

// hubEntry guarda el centro junto al canal que se cierra tras su carga inicial.
type hubEntry struct {
	center *Center
	ready  chan struct{}
}

// NewHub construye el hub. Los centros viven hasta que ctx termine o se llame Close.
func NewHub(
	ctx context.Context,
	alerts repository.AlertRepository,
	products repository.ProductRepository,
	feed ChangeFeed,
	cfg Config,
	log zerolog.Logger,
) *Hub {
	ctx, cancel := context.WithCancel(ctx)
	return &Hub{
		ctx:      ctx,
		cancel:   cancel,
		alerts:   alerts,
		products: products,
		feed:     feed,
		cfg:      cfg,
		log:      log,
		centers:  make(map[string]*hubEntry),
	}
}

// Center devuelve el centro de la empresa; la primera vez hace la carga inicial
// de forma síncrona y deja corriendo suscripciones y sondeo. Las llamadas
// concurrentes esperan la misma carga inicial.
func (h *Hub) Center(companyID string) *Center {
	h.mu.Lock()
	e, ok := h.centers[companyID]
	if ok {
		h.mu.Unlock()
		<-e.ready
		return e.center
	}
	e = &hubEntry{
		center: NewCenter(companyID, h.alerts, h.products, h.feed, h.cfg, h.log),
		ready:  make(chan struct{}),
	}
	h.centers[companyID] = e
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		e.center.runNotify(h.ctx, e.ready)
	}()
	<-e.ready
	return e.center
}

// Close detiene todos los centros y espera a que terminen.
func (h *Hub) Close() {
	h.cancel()
	h.wg.Wait()
}
