package realtime

import (
	"context"
	"sync"

	"github.com/jhoicas/gestion-pyme/internal/domain"
)

var _ Bus = (*MemoryBus)(nil)

// MemoryBus bus en proceso. Cada suscriptor tiene un buffer de un evento:
// si ya hay uno pendiente, el nuevo se descarta (el suscriptor relee el estado completo).
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	closed bool
}

type subscriber struct {
	table     string
	companyID string
	fn        Handler
	pending   chan domain.ChangeEvent
	done      chan struct{}
	once      sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewMemoryBus crea un bus vacío.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]*subscriber)}
}

// Publish entrega ev a los suscriptores de su tabla y empresa sin bloquear.
func (b *MemoryBus) Publish(_ context.Context, ev domain.ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return domain.E(domain.KindUnavailable, "realtime.Publish", nil)
	}
	for _, s := range b.subs {
		if s.table != ev.Table || s.companyID != ev.CompanyID {
			continue
		}
		select {
		case s.pending <- ev:
		default:
		}
	}
	return nil
}

// Subscribe registra fn. Se detiene al cancelar o cuando ctx termina.
func (b *MemoryBus) Subscribe(ctx context.Context, table, companyID string, fn Handler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, domain.E(domain.KindUnavailable, "realtime.Subscribe", nil)
	}
	id := b.nextID
	b.nextID++
	s := &subscriber{
		table:     table,
		companyID: companyID,
		fn:        fn,
		pending:   make(chan domain.ChangeEvent, 1),
		done:      make(chan struct{}),
	}
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.remove(id)
				return
			case <-s.done:
				return
			case ev := <-s.pending:
				s.fn(ev)
			}
		}
	}()

	return func() { b.remove(id) }, nil
}

func (b *MemoryBus) remove(id int) {
	b.mu.Lock()
	s, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		s.stop()
	}
}

// Close detiene todas las suscripciones.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[int]*subscriber)
	b.closed = true
	b.mu.Unlock()
	for _, s := range subs {
		s.stop()
	}
	return nil
}
