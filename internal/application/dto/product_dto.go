package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest entrada para crear un producto.
type CreateProductRequest struct {
	Code       string          `json:"code" validate:"required,min=1,max=100"`
	Name       string          `json:"name" validate:"required,min=1,max=200"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock" validate:"min=0"`
	MinStock   int             `json:"min_stock" validate:"min=0"`
	CategoryID string          `json:"category_id"`
	SupplierID string          `json:"supplier_id"`
}

// UpdateProductRequest entrada para actualizar un producto (el stock va por UpdateStockRequest).
type UpdateProductRequest struct {
	Name       *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Price      *decimal.Decimal `json:"price"`
	MinStock   *int             `json:"min_stock" validate:"omitempty,min=0"`
	CategoryID *string          `json:"category_id"`
	SupplierID *string          `json:"supplier_id"`
}

// UpdateStockRequest edición directa del stock desde inventario.
type UpdateStockRequest struct {
	Stock int `json:"stock" validate:"min=0"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID         string          `json:"id"`
	CompanyID  string          `json:"company_id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Stock      int             `json:"stock"`
	MinStock   int             `json:"min_stock"`
	CategoryID string          `json:"category_id,omitempty"`
	SupplierID string          `json:"supplier_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
