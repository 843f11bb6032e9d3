package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// Stock answers GET /api/products/:id/stock.
func (h *InventoryHandler) Stock(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.Params("id"))
	if !ok {
		return apiFail(c, "api.stock.fail", domain.Invalid("productId", "missing productId"))
	}
	avail, err := h.Inv.CheckAvailability(c.UserContext(), productID)
	if err != nil {
		return apiFail(c, "api.stock.fail", err)
	}
	return c.JSON(avail)
}
