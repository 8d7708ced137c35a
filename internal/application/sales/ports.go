package sales

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción con repos de ventas e inventario.
// Si fn retorna error se hace rollback de todo (venta, ítems y stock).
type TxRunner interface {
	RunSale(ctx context.Context, fn func(
		saleRepo repository.SaleRepository,
		productRepo repository.ProductRepository,
	) error) error
}

// ReceiptLine línea del comprobante con el nombre del producto ya resuelto.
type ReceiptLine struct {
	Code      string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Receipt datos del comprobante de una venta (PDF y correo).
type Receipt struct {
	SaleID          string
	CompanyName     string
	CompanyNIT      string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	PaymentMethod   string
	Date            time.Time
	Lines           []ReceiptLine
	Total           decimal.Decimal
}

// ConfirmationData contenido del correo de confirmación.
// PDF puede venir vacío si el comprobante no se pudo generar.
type ConfirmationData struct {
	Receipt Receipt
	PDF     []byte
}

// NotificationSender envía la confirmación de una venta al cliente.
type NotificationSender interface {
	Send(ctx context.Context, recipient string, data ConfirmationData) error
}

// ReceiptRenderer genera el PDF del comprobante.
type ReceiptRenderer interface {
	RenderReceipt(r *Receipt) ([]byte, error)
}
