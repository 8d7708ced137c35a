// Package alerts mantiene, por empresa, la lista activa de notificaciones de
// stock combinando alertas persistidas y alertas calculadas desde productos.
package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/alert"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// Trigger origen de un refresco.
type Trigger int

const (
	TriggerInitial Trigger = iota
	TriggerProducts
	TriggerAlerts
	TriggerPoll
)

func (t Trigger) String() string {
	switch t {
	case TriggerInitial:
		return "initial"
	case TriggerProducts:
		return "products"
	case TriggerAlerts:
		return "alerts"
	default:
		return "poll"
	}
}

// ChangeFeed canal de cambios en tiempo real filtrado por tabla y empresa.
// La función devuelta cancela la suscripción.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table, companyID string, fn func(domain.ChangeEvent)) (func(), error)
}

// Config parámetros del centro de alertas.
type Config struct {
	PollInterval time.Duration
	FetchLimit   int
	ToastWindow  time.Duration
}

// DefaultConfig sondeo cada 30s, 50 alertas, ventana de avisos de 400ms.
func DefaultConfig() Config {
	return Config{PollInterval: 30 * time.Second, FetchLimit: 50, ToastWindow: 400 * time.Millisecond}
}

// Center estado de notificaciones de una empresa.
type Center struct {
	companyID string
	alerts    repository.AlertRepository
	products  repository.ProductRepository
	feed      ChangeFeed
	cfg       Config
	log       zerolog.Logger
	now       func() time.Time
	batcher   *Batcher

	refreshMu sync.Mutex // serializa los refrescos

	mu        sync.RWMutex
	source    alert.SourceKind
	items     []alert.Notification
	toasted   map[string]alert.Severity // severidad ya avisada por producto
	readLocal map[string]struct{}       // marcadas como leídas en memoria

	subsMu  sync.Mutex
	subs    map[int]chan Toast
	nextSub int
}

// NewCenter construye el centro de una empresa. feed puede ser nil (solo sondeo).
func NewCenter(
	companyID string,
	alerts repository.AlertRepository,
	products repository.ProductRepository,
	feed ChangeFeed,
	cfg Config,
	log zerolog.Logger,
) *Center {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = def.FetchLimit
	}
	if cfg.ToastWindow <= 0 {
		cfg.ToastWindow = def.ToastWindow
	}
	c := &Center{
		companyID: companyID,
		alerts:    alerts,
		products:  products,
		feed:      feed,
		cfg:       cfg,
		log:       log.With().Str("company_id", companyID).Logger(),
		now:       time.Now,
		source:    alert.SourceSynthesized,
		items:     []alert.Notification{},
		toasted:   make(map[string]alert.Severity),
		readLocal: make(map[string]struct{}),
		subs:      make(map[int]chan Toast),
	}
	c.batcher = NewBatcher(cfg.ToastWindow, c.broadcast)
	return c
}

// Refresh recalcula la lista activa. Los errores de lectura no se propagan:
// se degrada a las alertas calculadas desde los productos.
func (c *Center) Refresh(ctx context.Context, trigger Trigger) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	now := c.now()
	var products []*entity.Product
	productsLoaded := false
	loadProducts := func() []*entity.Product {
		if productsLoaded {
			return products
		}
		productsLoaded = true
		list, err := c.products.ListAllByCompany(ctx, c.companyID)
		if err != nil {
			c.log.Warn().Err(err).Str("trigger", trigger.String()).Msg("alertas: no se pudieron leer los productos")
			return nil
		}
		products = list
		return products
	}

	var front []alert.Notification
	if trigger == TriggerProducts {
		front = alert.Synthesize(loadProducts(), now)
	}

	persisted, err := c.alerts.ListRecent(ctx, c.companyID, c.cfg.FetchLimit)
	if err != nil {
		c.log.Warn().Err(err).Str("trigger", trigger.String()).Msg("alertas: lectura de alertas persistidas falló, se usan las calculadas")
		persisted = nil
	}
	var src alert.Source
	if len(persisted) > 0 {
		src = alert.Resolve(persisted, nil, now)
	} else {
		src = alert.Resolve(nil, loadProducts(), now)
	}
	items := src.Items
	if len(front) > 0 {
		items = alert.Merge(front, items)
	}
	c.apply(src.Kind, items, products)
}

// apply publica la nueva lista y encola los productos cuya severidad aún no se avisó.
// products solo llega cuando el refresco los leyó; un producto sano vuelve a ser avisable.
func (c *Center) apply(kind alert.SourceKind, items []alert.Notification, products []*entity.Product) {
	c.mu.Lock()
	for _, p := range products {
		if p != nil && alert.Classify(p.Stock, p.MinStock) == alert.SeverityNone {
			delete(c.toasted, p.ID)
		}
	}
	present := make(map[string]struct{}, len(items))
	type fresh struct {
		key string
		sev alert.Severity
	}
	var news []fresh
	for i := range items {
		id := items[i].ID
		present[id] = struct{}{}
		if _, ok := c.readLocal[id]; ok {
			items[i].Read = true
		}
		sev := severityOf(items[i].Type)
		if sev == alert.SeverityNone || items[i].Read {
			continue
		}
		key := alert.ToastKey(items[i])
		if c.toasted[key] == sev {
			continue
		}
		c.toasted[key] = sev
		news = append(news, fresh{key: key, sev: sev})
	}
	// Un id que desaparece y vuelve se considera nuevo y no leído.
	for id := range c.readLocal {
		if _, ok := present[id]; !ok {
			delete(c.readLocal, id)
		}
	}
	c.source = kind
	c.items = items
	c.mu.Unlock()

	for _, n := range news {
		c.batcher.Add(n.sev, n.key)
	}
}

func severityOf(alertType string) alert.Severity {
	switch alertType {
	case entity.AlertCriticalStock:
		return alert.SeverityCritical
	case entity.AlertLowStock:
		return alert.SeverityLow
	default:
		return alert.SeverityNone
	}
}

// Snapshot copia de la lista activa y su origen.
func (c *Center) Snapshot() alert.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]alert.Notification, len(c.items))
	copy(items, c.items)
	return alert.Source{Kind: c.source, Items: items}
}

// Unread cantidad de notificaciones no leídas.
func (c *Center) Unread() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead marca una notificación como leída en memoria y, si es una fila
// persistida, también en la base. Un fallo al persistir solo se registra.
func (c *Center) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return domain.NewValidation("id", "es requerido")
	}
	c.mu.Lock()
	c.readLocal[id] = struct{}{}
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Read = true
		}
	}
	c.mu.Unlock()

	if !alert.LooksPersisted(id) {
		return nil
	}
	if err := c.alerts.MarkRead(ctx, c.companyID, id); err != nil {
		c.log.Warn().Err(err).Str("alert_id", id).Msg("alertas: no se pudo persistir la lectura")
	}
	return nil
}

// MarkAllRead marca todo como leído; persiste solo si hay filas persistidas en la lista.
func (c *Center) MarkAllRead(ctx context.Context) {
	persisted := false
	c.mu.Lock()
	for i := range c.items {
		c.items[i].Read = true
		c.readLocal[c.items[i].ID] = struct{}{}
		if alert.LooksPersisted(c.items[i].ID) {
			persisted = true
		}
	}
	c.mu.Unlock()

	if !persisted {
		return
	}
	if err := c.alerts.MarkAllRead(ctx, c.companyID); err != nil {
		c.log.Warn().Err(err).Msg("alertas: no se pudo persistir marcar todas como leídas")
	}
}

// Subscribe devuelve un canal de avisos agregados y la función para cancelarlo.
// Si el consumidor no lee a tiempo, los avisos se descartan.
func (c *Center) Subscribe() (<-chan Toast, func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Toast, 8)
	c.subs[id] = ch
	return ch, func() {
		c.subsMu.Lock()
		defer c.subsMu.Unlock()
		if s, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(s)
		}
	}
}

func (c *Center) broadcast(t Toast) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- t:
		default:
		}
	}
	c.log.Info().Str("severity", t.Severity).Int("count", t.Count).Msg(t.Message)
}

// closeSubs cierra todos los canales de avisos; los consumidores ven el cierre.
func (c *Center) closeSubs() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// Run hace la carga inicial, se suscribe a cambios de productos y alertas y
// sondea periódicamente hasta que ctx termine.
func (c *Center) Run(ctx context.Context) {
	c.runNotify(ctx, nil)
}

// runNotify cierra ready tras la carga inicial.
func (c *Center) runNotify(ctx context.Context, ready chan<- struct{}) {
	c.Refresh(ctx, TriggerInitial)
	if ready != nil {
		close(ready)
	}

	if c.feed != nil {
		subscribe := func(table string, trigger Trigger) {
			cancel, err := c.feed.Subscribe(ctx, table, c.companyID, func(domain.ChangeEvent) {
				c.Refresh(ctx, trigger)
			})
			if err != nil {
				c.log.Warn().Err(err).Str("table", table).Msg("alertas: sin canal en tiempo real, solo sondeo")
				return
			}
			go func() {
				<-ctx.Done()
				cancel()
			}()
		}
		subscribe(domain.TableProducts, TriggerProducts)
		subscribe(domain.TableAlerts, TriggerAlerts)
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	defer c.closeSubs()
	defer c.batcher.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx, TriggerPoll)
		}
	}
}
