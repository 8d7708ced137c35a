// Package analytics contiene el resumen del tablero principal.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// DashboardUseCase genera el resumen de ventas del día, del mes y el stock bajo.
type DashboardUseCase struct {
	saleRepo    repository.SaleRepository
	productRepo repository.ProductRepository
	now         func() time.Time
}

// NewDashboardUseCase construye el caso de uso.
func NewDashboardUseCase(saleRepo repository.SaleRepository, productRepo repository.ProductRepository) *DashboardUseCase {
	return &DashboardUseCase{saleRepo: saleRepo, productRepo: productRepo, now: time.Now}
}

// GetSummary construye el DashboardSummaryDTO para la empresa de la sesión.
//
// Tres llamadas en paralelo:
//  1. SumTotals(hoy)
//  2. SumTotals(mes)
//  3. CountLowStock
func (uc *DashboardUseCase) GetSummary(ctx context.Context, sess domain.Session) (*dto.DashboardSummaryDTO, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	companyID := sess.CompanyID
	now := uc.now()

	// Hoy: [00:00, mañana 00:00). Mes: [día 1, mañana 00:00).
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := todayStart.AddDate(0, 0, 1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	type sumResult struct {
		total decimal.Decimal
		count int
		err   error
	}
	type lowResult struct {
		n   int
		err error
	}

	todayCh := make(chan sumResult, 1)
	monthCh := make(chan sumResult, 1)
	lowCh := make(chan lowResult, 1)

	go func() {
		total, count, err := uc.saleRepo.SumTotals(ctx, companyID, todayStart, end)
		todayCh <- sumResult{total, count, err}
	}()
	go func() {
		total, count, err := uc.saleRepo.SumTotals(ctx, companyID, monthStart, end)
		monthCh <- sumResult{total, count, err}
	}()
	go func() {
		n, err := uc.productRepo.CountLowStock(ctx, companyID)
		lowCh <- lowResult{n, err}
	}()

	today := <-todayCh
	month := <-monthCh
	low := <-lowCh

	if today.err != nil {
		return nil, fmt.Errorf("dashboard: ventas de hoy: %w", today.err)
	}
	if month.err != nil {
		return nil, fmt.Errorf("dashboard: ventas del mes: %w", month.err)
	}
	if low.err != nil {
		return nil, fmt.Errorf("dashboard: stock bajo: %w", low.err)
	}

	return &dto.DashboardSummaryDTO{
		TodaySales:    today.total.Round(2),
		TodayCount:    today.count,
		MonthlySales:  month.total.Round(2),
		MonthlyCount:  month.count,
		LowStockCount: low.n,
		DateLabel:     monthLabel(now),
	}, nil
}

// monthLabel devuelve una etiqueta legible del mes, ej: "Febrero 2026".
func monthLabel(t time.Time) string {
	months := [...]string{
		"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
		"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
	}
	return fmt.Sprintf("%s %d", months[t.Month()-1], t.Year())
}
