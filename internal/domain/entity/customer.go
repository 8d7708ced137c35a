package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer representa un cliente acumulado a partir de las ventas.
// Se identifica por (CompanyID, Name): no hay llave foránea desde Sale.
type Customer struct {
	ID             string
	CompanyID      string
	Name           string
	Email          string
	Address        string
	TotalPurchased decimal.Decimal
	PurchaseCount  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
