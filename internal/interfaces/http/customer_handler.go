package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/gestion-pyme/internal/application/usecase"
)

// CustomerHandler expone los clientes acumulados por las ventas.
type CustomerHandler struct {
	uc *usecase.CustomerUseCase
}

// NewCustomerHandler construye el handler.
func NewCustomerHandler(uc *usecase.CustomerUseCase) *CustomerHandler {
	return &CustomerHandler{uc: uc}
}

// List godoc
// @Summary      Listar clientes
// @Description  Ordenados por total comprado descendente.
// @Tags         customers
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "Límite"  default(20)
// @Param        offset  query  int  false  "Offset"  default(0)
// @Success      200  {object}  dto.CustomerListResponse
// @Router       /api/customers [get]
func (h *CustomerHandler) List(c *fiber.Ctx) error {
	out, err := h.uc.List(c.UserContext(), GetSession(c), pageFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
