package entity

import "time"

// Company representa una organización/tenant del sistema (multi-tenant).
type Company struct {
	ID        string
	Name      string
	NIT       string
	Address   string
	Phone     string
	Email     string
	Status    string // active, suspended, inactive
	CreatedAt time.Time
	UpdatedAt time.Time
}
