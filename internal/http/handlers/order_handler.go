package handlers

import (
	"github.com/gofiber/fiber/v2"

	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type OrderHandler struct {
	Orders *services.OrderService
}

func (h *OrderHandler) show(c *fiber.Ctx, confirmation bool) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		c.Status(fiber.StatusNotFound)
		return render(c, "notfound", fiber.Map{"Message": "Order not found"})
	}
	o, err := h.Orders.GetOrder(c.UserContext(), identityOf(c), oid)
	if err != nil {
		if statusOf(err) == fiber.StatusNotFound {
			log.Security(c, "access.denied.order", map[string]any{"order_id": oid})
			c.Status(fiber.StatusNotFound)
			return render(c, "notfound", fiber.Map{"Message": "Order not found"})
		}
		return fail(c, "orders.view.fail", err)
	}
	return render(c, "order", fiber.Map{"Order": o, "Items": o.Lines, "Confirmation": confirmation})
}

// View shows an order the caller owns. Admins may open any order.
func (h *OrderHandler) View(c *fiber.Ctx) error { return h.show(c, false) }

func (h *OrderHandler) Confirmation(c *fiber.Ctx) error { return h.show(c, true) }

// History lists orders for the current logged-in user.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	orders, err := h.Orders.History(c.UserContext(), identityOf(c))
	if err != nil {
		return fail(c, "orders.history.fail", err)
	}
	return render(c, "order_history", fiber.Map{"Orders": orders})
}
