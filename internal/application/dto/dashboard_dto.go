package dto

import "github.com/shopspring/decimal"

// DashboardSummaryDTO respuesta de GET /api/dashboard/summary.
type DashboardSummaryDTO struct {
	TodaySales    decimal.Decimal `json:"today_sales"`
	TodayCount    int             `json:"today_count"`
	MonthlySales  decimal.Decimal `json:"monthly_sales"`
	MonthlyCount  int             `json:"monthly_count"`
	LowStockCount int             `json:"low_stock_count"`
	DateLabel     string          `json:"date_label"` // ej: "Febrero 2026"
}
