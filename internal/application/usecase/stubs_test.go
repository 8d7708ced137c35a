package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

type memProducts struct {
	mu       sync.Mutex
	byID     map[string]*entity.Product
	withSale map[string]bool
	// adjustHook se ejecuta antes de comparar el stock esperado.
	adjustHook func(p *entity.Product)
}

var _ repository.ProductRepository = (*memProducts)(nil)

func newMemProducts(ps ...*entity.Product) *memProducts {
	m := &memProducts{byID: map[string]*entity.Product{}, withSale: map[string]bool{}}
	for _, p := range ps {
		cp := *p
		m.byID[p.ID] = &cp
	}
	return m
}

func (m *memProducts) Create(_ context.Context, p *entity.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.byID {
		if q.CompanyID == p.CompanyID && q.Code == p.Code {
			return domain.E(domain.KindConflict, "insert product", domain.ErrDuplicate)
		}
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProducts) GetByID(_ context.Context, companyID, id string) (*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.CompanyID != companyID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetByCompanyAndCode(_ context.Context, companyID, code string) (*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.CompanyID == companyID && p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memProducts) GetByIDs(ctx context.Context, companyID string, ids []string) (map[string]*entity.Product, error) {
	out := map[string]*entity.Product{}
	for _, id := range ids {
		p, _ := m.GetByID(ctx, companyID, id)
		if p != nil {
			out[id] = p
		}
	}
	return out, nil
}

func (m *memProducts) Update(_ context.Context, p *entity.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.byID[p.ID]
	if !ok || cur.CompanyID != p.CompanyID {
		return domain.E(domain.KindNotFound, "update product", nil)
	}
	stock := cur.Stock
	cp := *p
	cp.Stock = stock
	m.byID[p.ID] = &cp
	return nil
}

func (m *memProducts) AdjustStock(_ context.Context, companyID, productID string, expected, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[productID]
	if !ok || p.CompanyID != companyID {
		return domain.E(domain.KindNotFound, "adjust stock", nil)
	}
	if m.adjustHook != nil {
		m.adjustHook(p)
	}
	if p.Stock != expected {
		return domain.E(domain.KindConflict, "adjust stock", fmt.Errorf("%w", domain.ErrStockChanged))
	}
	if p.Stock+delta < 0 {
		return domain.E(domain.KindConflict, "adjust stock", domain.ErrInsufficientStock)
	}
	p.Stock += delta
	return nil
}

func (m *memProducts) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.Product, error) {
	all, _ := m.ListAllByCompany(ctx, companyID)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memProducts) ListAllByCompany(_ context.Context, companyID string) ([]*entity.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Product
	for _, p := range m.byID {
		if p.CompanyID == companyID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memProducts) CountLowStock(ctx context.Context, companyID string) (int, error) {
	all, _ := m.ListAllByCompany(ctx, companyID)
	n := 0
	for _, p := range all {
		if p.MinStock > 0 && p.Stock <= p.MinStock {
			n++
		}
	}
	return n, nil
}

func (m *memProducts) Delete(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok || p.CompanyID != companyID {
		return domain.E(domain.KindNotFound, "delete product", nil)
	}
	if m.withSale[id] {
		return domain.E(domain.KindConflict, "delete product", nil)
	}
	delete(m.byID, id)
	return nil
}

type memCustomers struct {
	list []*entity.Customer
}

func (m *memCustomers) GetByCompanyAndName(context.Context, string, string) (*entity.Customer, error) {
	return nil, nil
}
func (m *memCustomers) Accumulate(context.Context, *entity.Customer) error { return nil }
func (m *memCustomers) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.Customer, error) {
	var out []*entity.Customer
	for _, c := range m.list {
		if c.CompanyID == companyID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memCompanies struct {
	byID map[string]*entity.Company
}

func (m *memCompanies) Create(_ context.Context, c *entity.Company) error {
	if m.byID == nil {
		m.byID = map[string]*entity.Company{}
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memCompanies) GetByID(_ context.Context, id string) (*entity.Company, error) {
	return m.byID[id], nil
}
