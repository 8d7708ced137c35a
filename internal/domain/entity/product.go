package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del inventario de una empresa.
// Stock es la existencia actual; MinStock (stock mínimo) alimenta las alertas.
type Product struct {
	ID         string
	CompanyID  string
	Code       string // código único por empresa
	Name       string
	Price      decimal.Decimal // precio de venta
	Stock      int
	MinStock   int
	CategoryID string // opcional
	SupplierID string // opcional
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
