package inventory

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/gestion-pyme/internal/domain"
)

// Line es la parte de una línea de venta que afecta al stock.
type Line struct {
	ProductID string
	Quantity  int
}

// ShortageError indica que la cantidad pedida de un producto supera su stock.
type ShortageError struct {
	ProductID string
	Requested int
	Available int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("stock insuficiente para el producto %s: solicitado %d, disponible %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *ShortageError) Unwrap() error { return domain.ErrInsufficientStock }

// AggregateQuantities suma la cantidad pedida por producto distinto.
func AggregateQuantities(lines []Line) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.ProductID] += l.Quantity
	}
	return out
}

// CheckAvailability rechaza si alguna cantidad positiva supera el stock del snapshot.
// Los productos se revisan en orden para que el error sea determinista.
func CheckAvailability(requested map[string]int, stock map[string]int) error {
	ids := make([]string, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		qty := requested[id]
		if qty <= 0 {
			continue
		}
		if available := stock[id]; qty > available {
			return &ShortageError{ProductID: id, Requested: qty, Available: available}
		}
	}
	return nil
}

// EditDeltas calcula el débito adicional por producto al pasar de oldLines a newLines.
// Positivo: unidades a descontar. Negativo: unidades a devolver al stock.
// Mismo producto: new - old. Producto cambiado: se acredita el viejo y se debita el nuevo.
func EditDeltas(oldLines, newLines []Line) map[string]int {
	deltas := make(map[string]int)
	for _, l := range oldLines {
		deltas[l.ProductID] -= l.Quantity
	}
	for _, l := range newLines {
		deltas[l.ProductID] += l.Quantity
	}
	for id, d := range deltas {
		if d == 0 {
			delete(deltas, id)
		}
	}
	return deltas
}

// LineSubtotal = cantidad * precio unitario.
func LineSubtotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// SaleTotal suma los subtotales de las líneas.
func SaleTotal(subtotals []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range subtotals {
		total = total.Add(s)
	}
	return total
}
