package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SaleItemRequest línea de venta enviada por el punto de venta.
type SaleItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1,max=1000000"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SaleRequest entrada para crear o editar una venta.
// Ambas operaciones rechazan valores inválidos (no se ajustan en silencio).
type SaleRequest struct {
	CustomerName    string            `json:"customer_name" validate:"required,max=200"`
	CustomerEmail   string            `json:"customer_email" validate:"required,email"`
	CustomerAddress string            `json:"customer_address" validate:"required,min=8"`
	PaymentMethod   string            `json:"payment_method" validate:"required,oneof=efectivo tarjeta transferencia"`
	Items           []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
}

// Normalize recorta espacios de los campos de texto.
func (r *SaleRequest) Normalize() {
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	r.CustomerAddress = strings.TrimSpace(r.CustomerAddress)
	r.PaymentMethod = strings.ToLower(strings.TrimSpace(r.PaymentMethod))
	for i := range r.Items {
		r.Items[i].ProductID = strings.TrimSpace(r.Items[i].ProductID)
	}
}

// Validate aplica las etiquetas y exige precio unitario > 0 con escala de centavos
// en cada línea. Subtotales y total también deben caber en numeric(14,2).
func (r *SaleRequest) Validate() error {
	err := Validate(r)
	extra := make(map[string]string)
	total := decimal.Zero
	for i, it := range r.Items {
		key := fmt.Sprintf("items[%d].unit_price", i)
		if !it.UnitPrice.GreaterThan(decimal.Zero) {
			extra[key] = "debe ser mayor que 0"
			continue
		}
		if msg := MoneyIssue(it.UnitPrice); msg != "" {
			extra[key] = msg
			continue
		}
		subtotal := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		if MoneyIssue(subtotal) != "" {
			extra[fmt.Sprintf("items[%d].quantity", i)] = "el subtotal excede el máximo permitido"
			continue
		}
		total = total.Add(subtotal)
	}
	if len(extra) == 0 && MoneyIssue(total) != "" {
		extra["items"] = "el total excede el máximo permitido"
	}
	return mergeFields(err, extra)
}

// SaleItemResponse salida de una línea de venta.
type SaleItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// SaleResponse salida de una venta con su detalle.
// Warnings lista los pasos best-effort que fallaron (cliente, email).
type SaleResponse struct {
	ID              string             `json:"id"`
	CompanyID       string             `json:"company_id"`
	CustomerName    string             `json:"customer_name"`
	CustomerEmail   string             `json:"customer_email"`
	CustomerAddress string             `json:"customer_address"`
	PaymentMethod   string             `json:"payment_method"`
	Total           decimal.Decimal    `json:"total"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
	Items           []SaleItemResponse `json:"items"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// SaleListResponse lista paginada de ventas (sin detalle).
type SaleListResponse struct {
	Items []SaleResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

// ReverseSaleResponse resultado de revertir una venta.
type ReverseSaleResponse struct {
	SaleID          string `json:"sale_id"`
	CustomerDeleted bool   `json:"customer_deleted"`
}
