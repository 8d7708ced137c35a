package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/jhoicas/gestion-pyme/internal/application/alerts"
	"github.com/jhoicas/gestion-pyme/internal/application/dto"
)

const heartbeatEvery = 15 * time.Second

// NotificationHandler expone el centro de alertas de stock de la empresa.
type NotificationHandler struct {
	hub       *alerts.Hub
	heartbeat time.Duration
}

// NewNotificationHandler construye el handler.
func NewNotificationHandler(hub *alerts.Hub) *NotificationHandler {
	return &NotificationHandler{hub: hub, heartbeat: heartbeatEvery}
}

// List godoc
// @Summary      Notificaciones activas
// @Description  Alertas persistidas o, si no hay, calculadas desde el stock de los productos.
// @Tags         notifications
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  dto.NotificationListResponse
// @Router       /api/notifications [get]
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	center := h.hub.Center(GetCompanyID(c))
	return c.JSON(listResponse(center))
}

// MarkRead godoc
// @Summary      Marcar notificación como leída
// @Tags         notifications
// @Security     Bearer
// @Param        id   path  string  true  "ID de la notificación"
// @Success      200  {object}  dto.NotificationListResponse
// @Router       /api/notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	center := h.hub.Center(GetCompanyID(c))
	if err := center.MarkRead(c.UserContext(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(listResponse(center))
}

// MarkAllRead godoc
// @Summary      Marcar todas como leídas
// @Tags         notifications
// @Security     Bearer
// @Success      200  {object}  dto.NotificationListResponse
// @Router       /api/notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	center := h.hub.Center(GetCompanyID(c))
	center.MarkAllRead(c.UserContext())
	return c.JSON(listResponse(center))
}

// Stream godoc
// @Summary      Avisos en tiempo real (SSE)
// @Description  Envía un evento "snapshot" al conectar y un evento "toast" por cada aviso agregado.
// @Description  EventSource no admite cabeceras: el token puede ir en ?token=.
// @Tags         notifications
// @Security     Bearer
// @Produce      text/event-stream
// @Router       /api/notifications/stream [get]
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	center := h.hub.Center(GetCompanyID(c))
	toasts, cancel := center.Subscribe()
	initial := listResponse(center)
	every := h.heartbeat

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		if err := writeEvent(w, "snapshot", initial); err != nil {
			return
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case t, ok := <-toasts:
				if !ok {
					return
				}
				if err := writeEvent(w, "toast", t); err != nil {
					return
				}
			case <-ticker.C:
				// Un Flush fallido indica que el cliente se desconectó.
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func listResponse(center *alerts.Center) dto.NotificationListResponse {
	snap := center.Snapshot()
	return dto.NotificationListResponse{Source: snap.Kind.String(), Unread: center.Unread(), Items: snap.Items}
}

type flusher interface {
	Flush() error
}

// writeEvent escribe un evento SSE con cuerpo JSON y hace flush si el writer lo permite.
func writeEvent(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
