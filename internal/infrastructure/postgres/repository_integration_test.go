//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
	"github.com/jhoicas/gestion-pyme/internal/infrastructure/postgres"
	"github.com/jhoicas/gestion-pyme/internal/infrastructure/realtime"
	"github.com/jhoicas/gestion-pyme/pkg/config"
)

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("erp_test"),
		tcpostgres.WithUsername("erp"),
		tcpostgres.WithPassword("erp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: dsn, MaxConns: 5})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := postgres.Migrate(ctx, pool)
	require.NoError(t, err)
	require.Len(t, applied, 3)

	// Segunda ejecución: nada pendiente.
	applied, err = postgres.Migrate(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, applied)
	return pool
}

func seedCompany(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()
	now := time.Now().UTC()
	c := &entity.Company{ID: uuid.NewString(), Name: "Tienda", NIT: "900", Status: "active", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, postgres.NewCompanyRepository(pool).Create(context.Background(), c))
	return c.ID
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, companyID, code string, stock, minStock int) *entity.Product {
	t.Helper()
	now := time.Now().UTC()
	p := &entity.Product{
		ID: uuid.NewString(), CompanyID: companyID, Code: code, Name: "Producto " + code,
		Price: decimal.NewFromInt(1000), Stock: stock, MinStock: minStock, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, postgres.NewProductRepository(pool).Create(context.Background(), p))
	return p
}

type saleLine struct {
	product  *entity.Product
	quantity int
}

// seedSale registra la venta con sus líneas, descuenta el stock y acumula el cliente.
func seedSale(t *testing.T, pool *pgxpool.Pool, companyID, customer string, lines ...saleLine) *entity.Sale {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	sale := &entity.Sale{
		ID: uuid.NewString(), CompanyID: companyID, CustomerName: customer, CustomerEmail: "cliente@x.co",
		CustomerAddress: "Calle 1", PaymentMethod: entity.PaymentCash, CreatedAt: now, UpdatedAt: now,
	}
	for _, l := range lines {
		sale.Total = sale.Total.Add(l.product.Price.Mul(decimal.NewFromInt(int64(l.quantity))))
	}
	err := postgres.NewTxRunner(pool).RunSale(ctx, func(sr repository.SaleRepository, pr repository.ProductRepository) error {
		if err := sr.Create(ctx, sale); err != nil {
			return err
		}
		for _, l := range lines {
			if err := sr.CreateItem(ctx, &entity.SaleItem{
				ID: uuid.NewString(), SaleID: sale.ID, ProductID: l.product.ID, Quantity: l.quantity,
				UnitPrice: l.product.Price, Subtotal: l.product.Price.Mul(decimal.NewFromInt(int64(l.quantity))),
			}); err != nil {
				return err
			}
			got, err := pr.GetByID(ctx, companyID, l.product.ID)
			if err != nil {
				return err
			}
			if err := pr.AdjustStock(ctx, companyID, l.product.ID, got.Stock, -l.quantity); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, postgres.NewCustomerRepository(pool).Accumulate(ctx, &entity.Customer{
		ID: uuid.NewString(), CompanyID: companyID, Name: customer, Email: sale.CustomerEmail,
		Address: sale.CustomerAddress, PurchaseCount: 1, TotalPurchased: sale.Total, UpdatedAt: now,
	}))
	return sale
}

func TestIntegration_Repositorios(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	companyID := seedCompany(t, pool)
	otherCompany := seedCompany(t, pool)

	products := postgres.NewProductRepository(pool)
	sales := postgres.NewSaleRepository(pool)
	customers := postgres.NewCustomerRepository(pool)
	alerts := postgres.NewAlertRepository(pool)

	t.Run("AdjustStock con guardia optimista", func(t *testing.T) {
		p := seedProduct(t, pool, companyID, "A-1", 10, 0)
		require.NoError(t, products.AdjustStock(ctx, companyID, p.ID, 10, -4))

		err := products.AdjustStock(ctx, companyID, p.ID, 10, -1)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrStockChanged)

		err = products.AdjustStock(ctx, companyID, p.ID, 6, -7)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		err = products.AdjustStock(ctx, otherCompany, p.ID, 6, -1)
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

		got, err := products.GetByID(ctx, companyID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, got.Stock)
	})

	t.Run("GetByIDs aísla por empresa", func(t *testing.T) {
		p := seedProduct(t, pool, companyID, "B-1", 3, 0)
		q := seedProduct(t, pool, otherCompany, "B-1", 3, 0)
		m, err := products.GetByIDs(ctx, companyID, []string{p.ID, q.ID})
		require.NoError(t, err)
		assert.Len(t, m, 1)
		assert.Contains(t, m, p.ID)
	})

	t.Run("código duplicado", func(t *testing.T) {
		seedProduct(t, pool, companyID, "DUP", 1, 0)
		now := time.Now().UTC()
		err := products.Create(ctx, &entity.Product{ID: uuid.NewString(), CompanyID: companyID, Code: "DUP", Name: "x", CreatedAt: now, UpdatedAt: now})
		assert.ErrorIs(t, err, domain.ErrDuplicate)
	})

	t.Run("trigger de alertas de stock", func(t *testing.T) {
		p := seedProduct(t, pool, companyID, "C-1", 10, 4)
		require.NoError(t, products.AdjustStock(ctx, companyID, p.ID, 10, -7)) // 3: bajo
		require.NoError(t, products.AdjustStock(ctx, companyID, p.ID, 3, -2))  // 1: crítico

		list, err := alerts.ListRecent(ctx, companyID, 10)
		require.NoError(t, err)
		var types []string
		for _, a := range list {
			if a.ProductID == p.ID {
				types = append(types, a.Type)
			}
		}
		assert.Equal(t, []string{entity.AlertCriticalStock, entity.AlertLowStock}, types)

		require.NoError(t, alerts.MarkRead(ctx, companyID, list[0].ID))
		require.NoError(t, alerts.MarkAllRead(ctx, companyID))
		list, err = alerts.ListRecent(ctx, companyID, 10)
		require.NoError(t, err)
		for _, a := range list {
			assert.True(t, a.Read)
		}
	})

	t.Run("reverse_sale restaura stock y borra cliente", func(t *testing.T) {
		p := seedProduct(t, pool, companyID, "D-1", 5, 0)
		now := time.Now().UTC()
		tx := postgres.NewTxRunner(pool)
		sale := &entity.Sale{
			ID: uuid.NewString(), CompanyID: companyID, CustomerName: "Ana", CustomerEmail: "ana@x.co",
			CustomerAddress: "Calle 1", PaymentMethod: entity.PaymentCash, Total: decimal.NewFromInt(2000),
			CreatedAt: now, UpdatedAt: now,
		}
		err := tx.RunSale(ctx, func(sr repository.SaleRepository, pr repository.ProductRepository) error {
			if err := sr.Create(ctx, sale); err != nil {
				return err
			}
			if err := sr.CreateItem(ctx, &entity.SaleItem{
				ID: uuid.NewString(), SaleID: sale.ID, ProductID: p.ID, Quantity: 2,
				UnitPrice: decimal.NewFromInt(1000), Subtotal: decimal.NewFromInt(2000),
			}); err != nil {
				return err
			}
			return pr.AdjustStock(ctx, companyID, p.ID, 5, -2)
		})
		require.NoError(t, err)
		require.NoError(t, customers.Accumulate(ctx, &entity.Customer{
			ID: uuid.NewString(), CompanyID: companyID, Name: "Ana", TotalPurchased: sale.Total, PurchaseCount: 1,
			UpdatedAt: now,
		}))

		total, count, err := sales.SumTotals(ctx, companyID, now.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(2000)))
		assert.Equal(t, 1, count)

		res, err := sales.Reverse(ctx, companyID, sale.ID)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.True(t, res.CustomerDeleted)

		got, err := products.GetByID(ctx, companyID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Stock)

		c, err := customers.GetByCompanyAndName(ctx, companyID, "Ana")
		require.NoError(t, err)
		assert.Nil(t, c)

		res, err = sales.Reverse(ctx, companyID, sale.ID)
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("reverse_sale con varios productos conserva al cliente con otras ventas", func(t *testing.T) {
		a := seedProduct(t, pool, companyID, "G-1", 10, 0)
		b := seedProduct(t, pool, companyID, "G-2", 10, 0)
		first := seedSale(t, pool, companyID, "Bea", saleLine{a, 3}, saleLine{b, 2}, saleLine{a, 1})
		second := seedSale(t, pool, companyID, "Bea", saleLine{b, 1})

		c, err := customers.GetByCompanyAndName(ctx, companyID, "Bea")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, 2, c.PurchaseCount)
		assert.True(t, c.TotalPurchased.Equal(decimal.NewFromInt(7000)))

		res, err := sales.Reverse(ctx, companyID, first.ID)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.False(t, res.CustomerDeleted)

		gotA, err := products.GetByID(ctx, companyID, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, gotA.Stock)
		gotB, err := products.GetByID(ctx, companyID, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 9, gotB.Stock)

		items, err := sales.GetItems(ctx, first.ID)
		require.NoError(t, err)
		assert.Empty(t, items)
		kept, err := sales.GetByID(ctx, companyID, second.ID)
		require.NoError(t, err)
		assert.NotNil(t, kept)

		c, err = customers.GetByCompanyAndName(ctx, companyID, "Bea")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, 1, c.PurchaseCount)
		assert.True(t, c.TotalPurchased.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("Accumulate concurrente no pierde compras", func(t *testing.T) {
		const buyers = 20
		var wg sync.WaitGroup
		errs := make(chan error, buyers)
		for i := 0; i < buyers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- customers.Accumulate(ctx, &entity.Customer{
					ID: uuid.NewString(), CompanyID: companyID, Name: "Caro", Email: "caro@x.co",
					PurchaseCount: 1, TotalPurchased: decimal.NewFromInt(100), UpdatedAt: time.Now().UTC(),
				})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		c, err := customers.GetByCompanyAndName(ctx, companyID, "Caro")
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, buyers, c.PurchaseCount)
		assert.True(t, c.TotalPurchased.Equal(decimal.NewFromInt(2000)))
		assert.Equal(t, "caro@x.co", c.Email)

		// Las restas no bajan de cero y no crean clientes ausentes.
		require.NoError(t, customers.Accumulate(ctx, &entity.Customer{
			CompanyID: companyID, Name: "Caro", PurchaseCount: -1, TotalPurchased: decimal.NewFromInt(-5000), UpdatedAt: time.Now().UTC(),
		}))
		c, err = customers.GetByCompanyAndName(ctx, companyID, "Caro")
		require.NoError(t, err)
		assert.Equal(t, buyers-1, c.PurchaseCount)
		assert.True(t, c.TotalPurchased.IsZero())
		assert.Equal(t, "caro@x.co", c.Email)

		require.NoError(t, customers.Accumulate(ctx, &entity.Customer{
			CompanyID: companyID, Name: "Nadie", PurchaseCount: -1, TotalPurchased: decimal.NewFromInt(-10), UpdatedAt: time.Now().UTC(),
		}))
		c, err = customers.GetByCompanyAndName(ctx, companyID, "Nadie")
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("RunSale revierte ante error", func(t *testing.T) {
		p := seedProduct(t, pool, companyID, "E-1", 5, 0)
		boom := errors.New("boom")
		err := postgres.NewTxRunner(pool).RunSale(ctx, func(_ repository.SaleRepository, pr repository.ProductRepository) error {
			if err := pr.AdjustStock(ctx, companyID, p.ID, 5, -5); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
		got, err := products.GetByID(ctx, companyID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.Stock)
	})

	t.Run("borrar producto con ventas es conflicto", func(t *testing.T) {
		p := seedProduct(t, pool, companyID, "F-1", 5, 0)
		now := time.Now().UTC()
		sale := &entity.Sale{ID: uuid.NewString(), CompanyID: companyID, CustomerName: "Luis", CustomerEmail: "l@x.co",
			CustomerAddress: "Cra 2", PaymentMethod: entity.PaymentCard, Total: decimal.NewFromInt(1000), CreatedAt: now, UpdatedAt: now}
		require.NoError(t, sales.Create(ctx, sale))
		require.NoError(t, sales.CreateItem(ctx, &entity.SaleItem{ID: uuid.NewString(), SaleID: sale.ID, ProductID: p.ID,
			Quantity: 1, UnitPrice: decimal.NewFromInt(1000), Subtotal: decimal.NewFromInt(1000)}))

		err := products.Delete(ctx, companyID, p.ID)
		assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	})
}

func TestIntegration_ChangeListener(t *testing.T) {
	pool := setupDB(t)
	companyID := seedCompany(t, pool)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := realtime.NewMemoryBus()
	defer bus.Close()
	got := make(chan domain.ChangeEvent, 8)
	unsub, err := bus.Subscribe(ctx, domain.TableProducts, companyID, func(ev domain.ChangeEvent) { got <- ev })
	require.NoError(t, err)
	defer unsub()

	go postgres.NewChangeListener(pool, bus, zerolog.Nop()).Run(ctx)

	// El LISTEN puede tardar en quedar activo: se reintenta el cambio hasta recibirlo.
	p := seedProduct(t, pool, companyID, "L-1", 10, 0)
	deadline := time.After(15 * time.Second)
	stock := 10
	for {
		select {
		case ev := <-got:
			assert.Equal(t, companyID, ev.CompanyID)
			assert.Equal(t, p.ID, ev.ID)
			return
		case <-deadline:
			t.Fatal("no llegó la notificación de cambio")
		case <-time.After(300 * time.Millisecond):
			require.NoError(t, postgres.NewProductRepository(pool).AdjustStock(ctx, companyID, p.ID, stock, -1))
			stock--
		}
	}
}
