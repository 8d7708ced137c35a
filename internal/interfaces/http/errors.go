package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/gestion-pyme/internal/application/dto"
	"github.com/jhoicas/gestion-pyme/internal/domain"
	"github.com/jhoicas/gestion-pyme/internal/domain/inventory"
)

// writeError traduce el Kind del error a status HTTP y cuerpo dto.ErrorResponse.
func writeError(c *fiber.Ctx, err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: "datos inválidos", Fields: ve.Fields,
		})
	}
	var se *inventory.ShortageError
	if errors.As(err, &se) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "INSUFFICIENT_STOCK", Message: se.Error(),
		})
	}

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case domain.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case domain.KindPermissionDenied:
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case domain.KindConflict:
		code := "CONFLICT"
		switch {
		case errors.Is(err, domain.ErrStockChanged):
			code = "STOCK_CHANGED"
		case errors.Is(err, domain.ErrInsufficientStock):
			code = "INSUFFICIENT_STOCK"
		case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrEmailAlreadyExists):
			code = "DUPLICATE"
		}
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: code, Message: err.Error()})
	case domain.KindUnavailable:
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "UNAVAILABLE", Message: "servicio no disponible, intente más tarde"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
	}
}

// errorStatus status que writeError usaría para err.
func errorStatus(err error) int {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest
	}
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindPermissionDenied:
		return fiber.StatusForbidden
	case domain.KindConflict:
		return fiber.StatusConflict
	case domain.KindUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

func pageFrom(c *fiber.Ctx) dto.PageRequest {
	p := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	p.DefaultPage()
	return p
}
