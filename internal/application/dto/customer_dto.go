package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerResponse salida de un cliente acumulado por ventas.
type CustomerResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	TotalPurchased decimal.Decimal `json:"total_purchased"`
	PurchaseCount  int             `json:"purchase_count"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CustomerListResponse lista paginada de clientes.
type CustomerListResponse struct {
	Items []CustomerResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}
