package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
	"github.com/jhoicas/gestion-pyme/internal/application/usecase"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	apphttp "github.com/jhoicas/gestion-pyme/internal/interfaces/http"
)

// productStore repositorio en memoria suficiente para las rutas de productos.
type productStore struct {
	mu   sync.Mutex
	byID map[string]*entity.Product
	// bump simula una venta concurrente antes de la guarda optimista.
	bump int
}

func newProductStore() *productStore {
	return &productStore{byID: map[string]*entity.Product{}}
}

func (s *productStore) Create(_ context.Context, p *entity.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *productStore) GetByID(_ context.Context, companyID, id string) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.CompanyID != companyID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *productStore) GetByCompanyAndCode(_ context.Context, companyID, code string) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.CompanyID == companyID && p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *productStore) GetByIDs(context.Context, string, []string) (map[string]*entity.Product, error) {
	return map[string]*entity.Product{}, nil
}

func (s *productStore) Update(_ context.Context, p *entity.Product) error {
	return s.Create(context.Background(), p)
}

func (s *productStore) AdjustStock(_ context.Context, companyID, id string, expected, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || p.CompanyID != companyID {
		return domain.E(domain.KindNotFound, "adjust stock", nil)
	}
	p.Stock += s.bump
	if p.Stock != expected {
		return domain.E(domain.KindConflict, "adjust stock", domain.ErrStockChanged)
	}
	p.Stock += delta
	return nil
}

func (s *productStore) ListByCompany(ctx context.Context, companyID string, _, _ int) ([]*entity.Product, error) {
	return s.ListAllByCompany(ctx, companyID)
}

func (s *productStore) ListAllByCompany(_ context.Context, companyID string) ([]*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Product
	for _, p := range s.byID {
		if p.CompanyID == companyID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *productStore) CountLowStock(context.Context, string) (int, error) { return 0, nil }

func (s *productStore) Delete(_ context.Context, companyID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func newRouterApp(store *productStore) *fiber.App {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		ProductUC: usecase.NewProductUseCase(store, zerolog.Nop()),
		JWTSecret: testJWTSecret,
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, role, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e.Code
}

const tornillo = `{"code":"T-01","name":"Tornillo","price":2500,"stock":10,"min_stock":4}`

func TestRouter_ProductosSinToken(t *testing.T) {
	app := newRouterApp(newProductStore())
	resp, _ := call(t, app, http.MethodGet, "/api/products", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_VendedorNoEscribeProductos(t *testing.T) {
	app := newRouterApp(newProductStore())
	resp, data := call(t, app, http.MethodPost, "/api/products", "vendedor", tornillo)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(t, data))
}

func TestRouter_SoloAdminRevierteVentas(t *testing.T) {
	app := newRouterApp(newProductStore())
	for _, role := range []string{"vendedor", "bodeguero"} {
		resp, _ := call(t, app, http.MethodDelete, "/api/sales/00000000-0000-0000-0000-0000000000aa", role, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, role)
	}
}

func TestRouter_CrearListarYEditarStock(t *testing.T) {
	store := newProductStore()
	app := newRouterApp(store)

	resp, data := call(t, app, http.MethodPost, "/api/products", "bodeguero", tornillo)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created dto.ProductResponse
	require.NoError(t, json.Unmarshal(data, &created))
	assert.Equal(t, testCompanyID, created.CompanyID)
	assert.Equal(t, 10, created.Stock)

	resp, data = call(t, app, http.MethodPost, "/api/products", "admin", tornillo)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DUPLICATE", errorCode(t, data))

	resp, data = call(t, app, http.MethodGet, "/api/products", "vendedor", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list dto.ProductListResponse
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list.Items, 1)

	resp, data = call(t, app, http.MethodPatch, "/api/products/"+created.ID+"/stock", "bodeguero", `{"stock":3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var updated dto.ProductResponse
	require.NoError(t, json.Unmarshal(data, &updated))
	assert.Equal(t, 3, updated.Stock)
}

func TestRouter_EditarStockConcurrente(t *testing.T) {
	store := newProductStore()
	app := newRouterApp(store)
	resp, data := call(t, app, http.MethodPost, "/api/products", "admin", tornillo)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created dto.ProductResponse
	require.NoError(t, json.Unmarshal(data, &created))

	store.bump = -1
	resp, data = call(t, app, http.MethodPatch, "/api/products/"+created.ID+"/stock", "admin", `{"stock":20}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "STOCK_CHANGED", errorCode(t, data))
}

func TestRouter_ErroresDeEntrada(t *testing.T) {
	app := newRouterApp(newProductStore())

	resp, data := call(t, app, http.MethodPost, "/api/products", "admin", `{"code":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BODY", errorCode(t, data))

	resp, data = call(t, app, http.MethodPost, "/api/products", "admin", `{"code":"","name":"X","price":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	assert.Equal(t, "VALIDATION", e.Code)
	assert.Contains(t, e.Fields, "price")

	resp, data = call(t, app, http.MethodGet, "/api/products/00000000-0000-0000-0000-0000000000ff", "admin", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, data))
}
