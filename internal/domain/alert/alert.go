// Package alert contiene las reglas puras de alertas de stock: umbrales,
// alertas sintetizadas desde productos y la precedencia entre fuentes.
package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/gestion-pyme/internal/domain/entity"
)

// Severity nivel de una alerta de stock.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityCritical
)

// Sufijos de id de las alertas sintetizadas.
const (
	suffixCritical = "-crit"
	suffixLow      = "-low"
)

// Classify aplica los umbrales: stock <= floor(min/2) es crítico, stock <= min es bajo.
// Con min <= 0 nunca hay alerta.
func Classify(stock, minStock int) Severity {
	if minStock <= 0 {
		return SeverityNone
	}
	switch {
	case stock <= minStock/2:
		return SeverityCritical
	case stock <= minStock:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// Notification forma común de una alerta, persistida o sintetizada.
type Notification struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id,omitempty"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}

// Synthesize calcula las alertas de stock a partir de los productos.
// El id es estable por producto y severidad; createdAt lo fija el llamador.
func Synthesize(products []*entity.Product, createdAt time.Time) []Notification {
	out := make([]Notification, 0)
	for _, p := range products {
		if p == nil {
			continue
		}
		switch Classify(p.Stock, p.MinStock) {
		case SeverityCritical:
			out = append(out, Notification{
				ID:        p.ID + suffixCritical,
				ProductID: p.ID,
				Message:   fmt.Sprintf("Stock crítico: %s (%d unidades, mínimo %d)", p.Name, p.Stock, p.MinStock),
				Type:      entity.AlertCriticalStock,
				CreatedAt: createdAt,
			})
		case SeverityLow:
			out = append(out, Notification{
				ID:        p.ID + suffixLow,
				ProductID: p.ID,
				Message:   fmt.Sprintf("Stock bajo: %s (%d unidades, mínimo %d)", p.Name, p.Stock, p.MinStock),
				Type:      entity.AlertLowStock,
				CreatedAt: createdAt,
			})
		}
	}
	return out
}

// FromPersisted convierte alertas de la tabla a la forma común.
func FromPersisted(alerts []*entity.Alert) []Notification {
	out := make([]Notification, 0, len(alerts))
	for _, a := range alerts {
		msg := a.Message
		if msg == "" {
			msg = a.Title
		}
		out = append(out, Notification{
			ID:        a.ID,
			ProductID: a.ProductID,
			Message:   msg,
			Type:      a.Type,
			CreatedAt: a.CreatedAt,
			Read:      a.Read,
		})
	}
	return out
}

// SourceKind identifica de dónde salió la lista activa.
type SourceKind int

const (
	SourcePersisted SourceKind = iota
	SourceSynthesized
)

func (k SourceKind) String() string {
	if k == SourcePersisted {
		return "persisted"
	}
	return "synthesized"
}

// Source es la unión etiquetada Persisted(rows) | Synthesized(rows).
type Source struct {
	Kind  SourceKind
	Items []Notification
}

// Resolve aplica la precedencia: las alertas persistidas ganan cuando hay alguna;
// si no, se usan las sintetizadas desde los productos.
func Resolve(persisted []*entity.Alert, products []*entity.Product, now time.Time) Source {
	if len(persisted) > 0 {
		return Source{Kind: SourcePersisted, Items: FromPersisted(persisted)}
	}
	return Source{Kind: SourceSynthesized, Items: Synthesize(products, now)}
}

// Merge antepone front a back eliminando ids repetidos (gana la primera aparición).
func Merge(front, back []Notification) []Notification {
	seen := make(map[string]struct{}, len(front)+len(back))
	out := make([]Notification, 0, len(front)+len(back))
	for _, list := range [][]Notification{front, back} {
		for _, n := range list {
			if _, ok := seen[n.ID]; ok {
				continue
			}
			seen[n.ID] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// ToastKey identifica el producto afectado por la alerta; sin producto se usa el id.
func ToastKey(n Notification) string {
	if n.ProductID != "" {
		return n.ProductID
	}
	return n.ID
}

// LooksPersisted indica si el id tiene formato de fila persistida (UUID).
// Los ids sintetizados nunca deben llegar a la capa de persistencia.
func LooksPersisted(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
