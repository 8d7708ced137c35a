package alerts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/gestion-pyme/internal/application/alerts"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/alert"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

const company = "c0a80101-0000-4000-8000-000000000001"

type stubProducts struct {
	repository.ProductRepository
	mu   sync.Mutex
	list []*entity.Product
}

func (s *stubProducts) ListAllByCompany(context.Context, string) ([]*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Product, 0, len(s.list))
	for _, p := range s.list {
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (s *stubProducts) set(list ...*entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = list
}

type stubAlerts struct {
	mu          sync.Mutex
	rows        []*entity.Alert
	err         error
	markRead    []string
	markAllRead int
}

func (s *stubAlerts) ListRecent(context.Context, string, int) ([]*entity.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.err
}

func (s *stubAlerts) MarkRead(_ context.Context, _ string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markRead = append(s.markRead, id)
	return nil
}

func (s *stubAlerts) MarkAllRead(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markAllRead++
	return nil
}

func prod(id string, stock, minStock int) *entity.Product {
	return &entity.Product{ID: id, CompanyID: company, Name: "Producto " + id, Stock: stock, MinStock: minStock}
}

func persistedRow(id, typ string) *entity.Alert {
	return &entity.Alert{ID: id, CompanyID: company, Type: typ, Title: "t", Message: "m", CreatedAt: time.Now()}
}

func testConfig() alerts.Config {
	return alerts.Config{PollInterval: time.Hour, FetchLimit: 50, ToastWindow: 20 * time.Millisecond}
}

func ids(items []alert.Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.ID)
	}
	return out
}

func TestRefresh_SinPersistidasUsaCalculadas(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 1, 4), prod("b", 3, 4), prod("c", 50, 4))
	c := alerts.NewCenter(company, &stubAlerts{}, products, nil, testConfig(), zerolog.Nop())

	c.Refresh(context.Background(), alerts.TriggerInitial)

	snap := c.Snapshot()
	assert.Equal(t, alert.SourceSynthesized, snap.Kind)
	list, _ := products.ListAllByCompany(context.Background(), company)
	want := alert.Synthesize(list, time.Time{})
	assert.Equal(t, ids(want), ids(snap.Items))
	assert.Equal(t, 2, c.Unread())
}

func TestRefresh_PersistidasTienenPrecedencia(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 1, 4))
	rows := &stubAlerts{rows: []*entity.Alert{persistedRow("2b1f7a4e-7c1d-4f0e-9a51-1b2c3d4e5f60", entity.AlertInfo)}}
	c := alerts.NewCenter(company, rows, products, nil, testConfig(), zerolog.Nop())

	c.Refresh(context.Background(), alerts.TriggerPoll)

	snap := c.Snapshot()
	assert.Equal(t, alert.SourcePersisted, snap.Kind)
	assert.Equal(t, []string{"2b1f7a4e-7c1d-4f0e-9a51-1b2c3d4e5f60"}, ids(snap.Items))
}

func TestRefresh_ErrorDeLecturaDegrada(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 1, 4))
	rows := &stubAlerts{err: errors.New("permiso denegado")}
	c := alerts.NewCenter(company, rows, products, nil, testConfig(), zerolog.Nop())

	c.Refresh(context.Background(), alerts.TriggerPoll)

	snap := c.Snapshot()
	assert.Equal(t, alert.SourceSynthesized, snap.Kind)
	assert.Equal(t, []string{"a-crit"}, ids(snap.Items))
}

func TestRefresh_CambioDeProductoAntepone(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 1, 4))
	persistedID := "2b1f7a4e-7c1d-4f0e-9a51-1b2c3d4e5f60"
	rows := &stubAlerts{rows: []*entity.Alert{persistedRow(persistedID, entity.AlertLowStock)}}
	c := alerts.NewCenter(company, rows, products, nil, testConfig(), zerolog.Nop())

	c.Refresh(context.Background(), alerts.TriggerProducts)

	assert.Equal(t, []string{"a-crit", persistedID}, ids(c.Snapshot().Items))
}

func TestRefresh_EscenarioVentasSucesivas(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("P1", 10, 4))
	c := alerts.NewCenter(company, &stubAlerts{}, products, nil, testConfig(), zerolog.Nop())
	ctx := context.Background()

	c.Refresh(ctx, alerts.TriggerInitial)
	assert.Empty(t, c.Snapshot().Items)

	products.set(prod("P1", 3, 4))
	c.Refresh(ctx, alerts.TriggerProducts)
	require.Len(t, c.Snapshot().Items, 1)
	assert.Equal(t, entity.AlertLowStock, c.Snapshot().Items[0].Type)

	products.set(prod("P1", 1, 4))
	c.Refresh(ctx, alerts.TriggerProducts)
	require.Len(t, c.Snapshot().Items, 1)
	assert.Equal(t, "P1-crit", c.Snapshot().Items[0].ID)
}

func TestMarkRead_SoloPersisteIdsDeFila(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 1, 4))
	rows := &stubAlerts{}
	c := alerts.NewCenter(company, rows, products, nil, testConfig(), zerolog.Nop())
	ctx := context.Background()
	c.Refresh(ctx, alerts.TriggerInitial)

	require.NoError(t, c.MarkRead(ctx, "a-crit"))
	assert.Empty(t, rows.markRead, "los ids calculados no llegan a la base")
	assert.Equal(t, 0, c.Unread())

	// La lectura local sobrevive al siguiente refresco.
	c.Refresh(ctx, alerts.TriggerPoll)
	assert.Equal(t, 0, c.Unread())

	persistedID := "2b1f7a4e-7c1d-4f0e-9a51-1b2c3d4e5f60"
	require.NoError(t, c.MarkRead(ctx, persistedID))
	assert.Equal(t, []string{persistedID}, rows.markRead)

	assert.Equal(t, domain.KindValidation, domain.KindOf(c.MarkRead(ctx, "")))
}

func TestMarkAllRead(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 1, 4), prod("b", 3, 4))
	rows := &stubAlerts{}
	c := alerts.NewCenter(company, rows, products, nil, testConfig(), zerolog.Nop())
	ctx := context.Background()
	c.Refresh(ctx, alerts.TriggerInitial)

	c.MarkAllRead(ctx)
	assert.Equal(t, 0, c.Unread())
	assert.Equal(t, 0, rows.markAllRead)

	rows.rows = []*entity.Alert{persistedRow("2b1f7a4e-7c1d-4f0e-9a51-1b2c3d4e5f60", entity.AlertInfo)}
	c.Refresh(ctx, alerts.TriggerPoll)
	require.Equal(t, 1, c.Unread())
	c.MarkAllRead(ctx)
	assert.Equal(t, 1, rows.markAllRead)
}

func receive(t *testing.T, ch <-chan alerts.Toast) alerts.Toast {
	t.Helper()
	select {
	case toast := <-ch:
		return toast
	case <-time.After(time.Second):
		t.Fatal("no llegó el aviso")
		return alerts.Toast{}
	}
}

func TestAvisosAgregados(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 0, 4), prod("b", 1, 4), prod("c", 2, 4), prod("d", 3, 4), prod("e", 4, 4))
	c := alerts.NewCenter(company, &stubAlerts{}, products, nil, testConfig(), zerolog.Nop())
	toasts, cancel := c.Subscribe()
	defer cancel()

	c.Refresh(context.Background(), alerts.TriggerInitial)

	first := receive(t, toasts)
	second := receive(t, toasts)
	assert.Equal(t, alerts.Toast{Severity: "critical", Count: 3, Message: "Stock crítico: 3 producto(s) afectados"}, first)
	assert.Equal(t, alerts.Toast{Severity: "low", Count: 2, Message: "Stock bajo: 2 producto(s) afectados"}, second)

	// Mismos productos: nada nuevo que avisar.
	c.Refresh(context.Background(), alerts.TriggerPoll)
	silence(t, toasts)
}

func silence(t *testing.T, ch <-chan alerts.Toast) {
	t.Helper()
	select {
	case toast := <-ch:
		t.Fatalf("aviso inesperado: %+v", toast)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestAvisos_UnoPorProductoEntreFuentes(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 10, 4), prod("x", 10, 4))
	rows := &stubAlerts{}
	c := alerts.NewCenter(company, rows, products, nil, testConfig(), zerolog.Nop())
	toasts, cancel := c.Subscribe()
	defer cancel()
	ctx := context.Background()

	c.Refresh(ctx, alerts.TriggerInitial)
	silence(t, toasts)

	// La venta deja "a" en crítico y el trigger inserta su fila.
	products.set(prod("a", 1, 4), prod("x", 10, 4))
	row := persistedRow("2b1f7a4e-7c1d-4f0e-9a51-1b2c3d4e5f60", entity.AlertCriticalStock)
	row.ProductID = "a"
	rows.mu.Lock()
	rows.rows = []*entity.Alert{row}
	rows.mu.Unlock()
	c.Refresh(ctx, alerts.TriggerProducts)

	toast := receive(t, toasts)
	assert.Equal(t, alerts.Toast{Severity: "critical", Count: 1, Message: "Stock crítico: 1 producto(s) afectados"}, toast)
	silence(t, toasts)

	// El sondeo deja solo la fila persistida: el producto ya se avisó.
	c.Refresh(ctx, alerts.TriggerPoll)
	silence(t, toasts)

	// Un cambio en otro producto no repite el aviso de "a".
	products.set(prod("a", 1, 4), prod("x", 9, 4))
	c.Refresh(ctx, alerts.TriggerProducts)
	silence(t, toasts)
}

func TestAvisos_ProductoRecuperadoVuelveAAvisar(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 3, 4))
	c := alerts.NewCenter(company, &stubAlerts{}, products, nil, testConfig(), zerolog.Nop())
	toasts, cancel := c.Subscribe()
	defer cancel()
	ctx := context.Background()

	c.Refresh(ctx, alerts.TriggerInitial)
	assert.Equal(t, "low", receive(t, toasts).Severity)

	products.set(prod("a", 1, 4))
	c.Refresh(ctx, alerts.TriggerProducts)
	assert.Equal(t, "critical", receive(t, toasts).Severity)

	products.set(prod("a", 20, 4))
	c.Refresh(ctx, alerts.TriggerProducts)
	silence(t, toasts)

	products.set(prod("a", 1, 4))
	c.Refresh(ctx, alerts.TriggerProducts)
	assert.Equal(t, "critical", receive(t, toasts).Severity)
}

type fakeFeed struct {
	mu  sync.Mutex
	fns map[string]func(domain.ChangeEvent)
}

func (f *fakeFeed) Subscribe(_ context.Context, table, _ string, fn func(domain.ChangeEvent)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fns == nil {
		f.fns = map[string]func(domain.ChangeEvent){}
	}
	f.fns[table] = fn
	return func() {}, nil
}

func (f *fakeFeed) fire(table string) {
	f.mu.Lock()
	fn := f.fns[table]
	f.mu.Unlock()
	if fn != nil {
		fn(domain.ChangeEvent{Table: table, CompanyID: company, Op: "UPDATE"})
	}
}

func (f *fakeFeed) subscribed(table string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.fns[table]
	return ok
}

func TestRun_RefrescaConEventos(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 10, 4))
	feed := &fakeFeed{}
	c := alerts.NewCenter(company, &stubAlerts{}, products, feed, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return feed.subscribed(domain.TableProducts) && feed.subscribed(domain.TableAlerts)
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.Snapshot().Items)

	products.set(prod("a", 1, 4))
	feed.fire(domain.TableProducts)
	assert.Equal(t, []string{"a-crit"}, ids(c.Snapshot().Items))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run no terminó al cancelar el contexto")
	}
}

func TestHub_UnCentroPorEmpresa(t *testing.T) {
	products := &stubProducts{}
	products.set(prod("a", 1, 4))
	hub := alerts.NewHub(context.Background(), &stubAlerts{}, products, nil, testConfig(), zerolog.Nop())
	defer hub.Close()

	c1 := hub.Center(company)
	c2 := hub.Center(company)
	assert.Same(t, c1, c2)
	assert.Equal(t, []string{"a-crit"}, ids(c1.Snapshot().Items), "la carga inicial ocurre antes de devolver")
	assert.NotSame(t, c1, hub.Center("otra"))
}

type gatedProducts struct {
	stubProducts
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedProducts) ListAllByCompany(ctx context.Context, companyID string) ([]*entity.Product, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.stubProducts.ListAllByCompany(ctx, companyID)
}

func TestHub_LlamadasConcurrentesEsperanLaCargaInicial(t *testing.T) {
	products := &gatedProducts{entered: make(chan struct{}), release: make(chan struct{})}
	products.set(prod("a", 1, 4))
	hub := alerts.NewHub(context.Background(), &stubAlerts{}, products, nil, testConfig(), zerolog.Nop())
	defer hub.Close()

	results := make(chan *alerts.Center, 2)
	go func() { results <- hub.Center(company) }()
	<-products.entered
	go func() { results <- hub.Center(company) }()

	select {
	case <-results:
		t.Fatal("el centro se devolvió antes de la carga inicial")
	case <-time.After(50 * time.Millisecond):
	}
	close(products.release)

	for i := 0; i < 2; i++ {
		select {
		case c := <-results:
			assert.Equal(t, []string{"a-crit"}, ids(c.Snapshot().Items))
		case <-time.After(time.Second):
			t.Fatal("Hub.Center no devolvió el centro")
		}
	}
}
