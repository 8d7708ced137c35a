package entity

import "time"

// Tipos de alerta.
const (
	AlertLowStock      = "stock_bajo"
	AlertCriticalStock = "stock_critico"
	AlertInfo          = "info"
)

// Alert es una alerta persistida en la tabla alerts.
type Alert struct {
	ID        string
	CompanyID string
	ProductID string // vacío si la alerta no es de stock
	Type      string
	Title     string
	Message   string
	Read      bool
	CreatedAt time.Time
}
