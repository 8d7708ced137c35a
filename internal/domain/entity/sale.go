package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Métodos de pago aceptados en el punto de venta.
const (
	PaymentCash     = "efectivo"
	PaymentCard     = "tarjeta"
	PaymentTransfer = "transferencia"
)

// Sale representa la cabecera de una venta.
// Total debe ser igual a la suma de los Subtotal de sus ítems.
type Sale struct {
	ID              string
	CompanyID       string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	PaymentMethod   string
	Total           decimal.Decimal
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SaleItem representa una línea de una venta. Subtotal = Quantity * UnitPrice.
type SaleItem struct {
	ID        string
	SaleID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}
