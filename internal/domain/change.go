package domain

// Tablas observadas por el canal de cambios en tiempo real.
const (
	TableProducts = "products"
	TableAlerts   = "alerts"
)

// ChangeEvent notificación de que una fila de una tabla cambió.
type ChangeEvent struct {
	Table     string `json:"table"`
	CompanyID string `json:"company_id"`
	Op        string `json:"op"` // INSERT, UPDATE, DELETE
	ID        string `json:"id"`
}
