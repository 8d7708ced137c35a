package dto

import "github.com/jhoicas/gestion-pyme/internal/domain/alert"

// NotificationListResponse lista activa de notificaciones de la empresa.
type NotificationListResponse struct {
	Source string               `json:"source"` // persisted | synthesized
	Unread int                  `json:"unread"`
	Items  []alert.Notification `json:"items"`
}
