package sales_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/application/sales"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// memStore base en memoria compartida por los repos de prueba.
type memStore struct {
	mu        sync.Mutex
	products  map[string]*entity.Product
	sales     map[string]*entity.Sale
	items     map[string][]*entity.SaleItem
	customers map[string]*entity.Customer

	// beforeAdjust simula otra escritura concurrente sobre el stock.
	beforeAdjust func(productID string)
	customerErr  error
}

func newMemStore(products ...*entity.Product) *memStore {
	s := &memStore{
		products:  map[string]*entity.Product{},
		sales:     map[string]*entity.Sale{},
		items:     map[string][]*entity.SaleItem{},
		customers: map[string]*entity.Customer{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

type snapshotState struct {
	products  map[string]entity.Product
	sales     map[string]*entity.Sale
	items     map[string][]*entity.SaleItem
	customers map[string]*entity.Customer
}

func (s *memStore) save() snapshotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := snapshotState{
		products:  map[string]entity.Product{},
		sales:     map[string]*entity.Sale{},
		items:     map[string][]*entity.SaleItem{},
		customers: map[string]*entity.Customer{},
	}
	for k, v := range s.products {
		st.products[k] = *v
	}
	for k, v := range s.sales {
		c := *v
		st.sales[k] = &c
	}
	for k, v := range s.items {
		st.items[k] = append([]*entity.SaleItem(nil), v...)
	}
	for k, v := range s.customers {
		c := *v
		st.customers[k] = &c
	}
	return st
}

func (s *memStore) restore(st snapshotState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = map[string]*entity.Product{}
	for k, v := range st.products {
		p := v
		s.products[k] = &p
	}
	s.sales, s.items, s.customers = st.sales, st.items, st.customers
}

// txRunner emula la transacción restaurando el estado si fn falla.
type txRunner struct{ s *memStore }

func (t txRunner) RunSale(ctx context.Context, fn func(repository.SaleRepository, repository.ProductRepository) error) error {
	st := t.s.save()
	if err := fn(saleRepo{t.s}, productRepo{t.s}); err != nil {
		t.s.restore(st)
		return err
	}
	return nil
}

type productRepo struct{ s *memStore }

var _ repository.ProductRepository = productRepo{}

func (r productRepo) Create(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *p
	r.s.products[p.ID] = &c
	return nil
}

func (r productRepo) GetByID(_ context.Context, companyID, id string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok || p.CompanyID != companyID {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (r productRepo) GetByCompanyAndCode(_ context.Context, companyID, code string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.CompanyID == companyID && p.Code == code {
			c := *p
			return &c, nil
		}
	}
	return nil, nil
}

func (r productRepo) GetByIDs(_ context.Context, companyID string, ids []string) (map[string]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]*entity.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok && p.CompanyID == companyID {
			c := *p
			out[id] = &c
		}
	}
	return out, nil
}

func (r productRepo) Update(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *p
	r.s.products[p.ID] = &c
	return nil
}

func (r productRepo) AdjustStock(_ context.Context, companyID, productID string, expected, delta int) error {
	if r.s.beforeAdjust != nil {
		r.s.beforeAdjust(productID)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok || p.CompanyID != companyID {
		return domain.E(domain.KindNotFound, "AdjustStock", nil)
	}
	if p.Stock != expected {
		return domain.E(domain.KindConflict, "AdjustStock", domain.ErrStockChanged)
	}
	if expected+delta < 0 {
		return domain.E(domain.KindConflict, "AdjustStock", domain.ErrInsufficientStock)
	}
	p.Stock = expected + delta
	return nil
}

func (r productRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Product, error) {
	all, _ := r.ListAllByCompany(ctx, companyID)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r productRepo) ListAllByCompany(_ context.Context, companyID string) ([]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.CompanyID == companyID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r productRepo) CountLowStock(ctx context.Context, companyID string) (int, error) {
	all, _ := r.ListAllByCompany(ctx, companyID)
	n := 0
	for _, p := range all {
		if p.MinStock > 0 && p.Stock <= p.MinStock {
			n++
		}
	}
	return n, nil
}

func (r productRepo) Delete(_ context.Context, companyID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.products, id)
	return nil
}

type saleRepo struct{ s *memStore }

var _ repository.SaleRepository = saleRepo{}

func (r saleRepo) Create(_ context.Context, sale *entity.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *sale
	r.s.sales[sale.ID] = &c
	return nil
}

func (r saleRepo) CreateItem(_ context.Context, item *entity.SaleItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *item
	r.s.items[item.SaleID] = append(r.s.items[item.SaleID], &c)
	return nil
}

func (r saleRepo) GetByID(_ context.Context, companyID, id string) (*entity.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sales[id]
	if !ok || s.CompanyID != companyID {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r saleRepo) GetItems(_ context.Context, saleID string) ([]*entity.SaleItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]*entity.SaleItem(nil), r.s.items[saleID]...), nil
}

func (r saleRepo) Update(_ context.Context, sale *entity.Sale) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.sales[sale.ID]; !ok {
		return domain.ErrNotFound
	}
	c := *sale
	r.s.sales[sale.ID] = &c
	return nil
}

func (r saleRepo) DeleteItems(_ context.Context, saleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.items, saleID)
	return nil
}

func (r saleRepo) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Sale
	for _, s := range r.s.sales {
		if s.CompanyID == companyID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r saleRepo) SumTotals(_ context.Context, companyID string, from, to time.Time) (decimal.Decimal, int, error) {
	return decimal.Zero, 0, nil
}

func (r saleRepo) Reverse(_ context.Context, companyID, saleID string) (*repository.ReverseResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.sales[saleID]
	if !ok || sale.CompanyID != companyID {
		return nil, nil
	}
	for _, it := range r.s.items[saleID] {
		if p, ok := r.s.products[it.ProductID]; ok {
			p.Stock += it.Quantity
		}
	}
	delete(r.s.items, saleID)
	delete(r.s.sales, saleID)
	res := &repository.ReverseResult{SaleID: saleID}
	others := false
	for _, s := range r.s.sales {
		if s.CompanyID == companyID && s.CustomerName == sale.CustomerName {
			others = true
		}
	}
	key := companyID + "|" + sale.CustomerName
	if c, ok := r.s.customers[key]; ok {
		if others {
			c.PurchaseCount--
			c.TotalPurchased = c.TotalPurchased.Sub(sale.Total)
		} else {
			delete(r.s.customers, key)
			res.CustomerDeleted = true
		}
	}
	return res, nil
}

type customerRepo struct{ s *memStore }

var _ repository.CustomerRepository = customerRepo{}

func (r customerRepo) GetByCompanyAndName(_ context.Context, companyID, name string) (*entity.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.customerErr != nil {
		return nil, r.s.customerErr
	}
	c, ok := r.s.customers[companyID+"|"+name]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r customerRepo) Accumulate(_ context.Context, d *entity.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.customerErr != nil {
		return r.s.customerErr
	}
	key := d.CompanyID + "|" + d.Name
	c, ok := r.s.customers[key]
	if !ok {
		if d.PurchaseCount <= 0 {
			return nil
		}
		cp := *d
		cp.TotalPurchased = decimal.Max(cp.TotalPurchased, decimal.Zero)
		cp.CreatedAt = d.UpdatedAt
		r.s.customers[key] = &cp
		return nil
	}
	c.PurchaseCount = max(c.PurchaseCount+d.PurchaseCount, 0)
	c.TotalPurchased = decimal.Max(c.TotalPurchased.Add(d.TotalPurchased), decimal.Zero)
	if d.Email != "" {
		c.Email = d.Email
	}
	if d.Address != "" {
		c.Address = d.Address
	}
	c.UpdatedAt = d.UpdatedAt
	return nil
}

func (r customerRepo) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.Customer, error) {
	return nil, nil
}

type companyRepo struct{}

func (companyRepo) Create(context.Context, *entity.Company) error { return nil }

func (companyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	return &entity.Company{ID: id, Name: "Tienda Demo", NIT: "900123456-7"}, nil
}

// stubSender falla las primeras failures llamadas.
type stubSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	last     sales.ConfirmationData
}

func (s *stubSender) Send(_ context.Context, _ string, data sales.ConfirmationData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = data
	if s.calls <= s.failures {
		return errors.New("smtp: conexión rechazada")
	}
	return nil
}

type stubRenderer struct{}

func (stubRenderer) RenderReceipt(r *sales.Receipt) ([]byte, error) {
	return []byte("%PDF-" + r.SaleID), nil
}
