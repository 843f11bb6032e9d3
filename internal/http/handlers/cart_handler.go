package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	cart, err := h.Cart.GetCart(c.UserContext(), identityOf(c))
	if err != nil {
		return fail(c, "cart.view.fail", err)
	}
	return render(c, "cart", fiber.Map{"Cart": cart})
}

// cartError shows the cart again with the reason a change was refused.
// Anything other than a client mistake goes through fail.
func (h *CartHandler) cartError(c *fiber.Ctx, action string, err error) error {
	status := statusOf(err)
	if status != fiber.StatusBadRequest && status != fiber.StatusConflict && status != fiber.StatusNotFound {
		return fail(c, action, err)
	}
	log.Info(c, action, map[string]any{"error": err.Error()})
	cart, cerr := h.Cart.GetCart(c.UserContext(), identityOf(c))
	if cerr != nil {
		return fail(c, action, cerr)
	}
	c.Status(status)
	return render(c, "cart", fiber.Map{"Cart": cart, "Err": messageOf(err)})
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	productID, ok := validate.ID(c.FormValue("productId"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "productId"})
		return h.cartError(c, "cart.add.fail", domain.Invalid("productId", "missing product"))
	}
	qty := 1
	if raw := c.FormValue("qty"); raw != "" {
		if qty, ok = validate.Qty(raw); !ok {
			return h.cartError(c, "cart.add.fail", domain.ErrInvalidQuantity)
		}
	}
	line, err := h.Cart.AddItem(c.UserContext(), identityOf(c), productID, qty)
	if err != nil {
		return h.cartError(c, "cart.add.fail", err)
	}
	log.Audit(c, "cart.add", map[string]any{"product_id": productID, "qty": qty, "line_qty": line.Quantity})
	return c.Redirect("/cart")
}

func lineIDOf(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.FormValue("lineId"), 10, 64)
	return id, err == nil && id > 0
}

// Update changes a line quantity. Callers asking for JSON get the recomputed
// subtotal and total instead of a redirect.
func (h *CartHandler) Update(c *fiber.Ctx) error {
	wantsJSON := c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
	lineID, ok := lineIDOf(c)
	if !ok {
		err := domain.Invalid("lineId", "missing cart line")
		if wantsJSON {
			return apiFail(c, "cart.update.fail", err)
		}
		return h.cartError(c, "cart.update.fail", err)
	}
	qty, ok := validate.Qty(c.FormValue("qty"))
	if !ok {
		qty = 0
	}
	res, err := h.Cart.UpdateQuantity(c.UserContext(), identityOf(c), lineID, qty)
	if err != nil {
		if wantsJSON {
			return apiFail(c, "cart.update.fail", err)
		}
		return h.cartError(c, "cart.update.fail", err)
	}
	log.Audit(c, "cart.update", map[string]any{"line_id": lineID, "qty": qty})
	if wantsJSON {
		return c.JSON(fiber.Map{
			"lineId":    lineID,
			"quantity":  res.Line.Quantity,
			"subtotal":  res.Subtotal.StringFixed(2),
			"cartTotal": res.CartTotal.StringFixed(2),
			"itemCount": res.ItemCount,
		})
	}
	return c.Redirect("/cart")
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	lineID, ok := lineIDOf(c)
	if !ok {
		return h.cartError(c, "cart.remove.fail", domain.Invalid("lineId", "missing cart line"))
	}
	if err := h.Cart.RemoveItem(c.UserContext(), identityOf(c), lineID); err != nil {
		return h.cartError(c, "cart.remove.fail", err)
	}
	log.Audit(c, "cart.remove", map[string]any{"line_id": lineID})
	return c.Redirect("/cart")
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	if err := h.Cart.Clear(c.UserContext(), identityOf(c)); err != nil {
		return fail(c, "cart.clear.fail", err)
	}
	log.Audit(c, "cart.clear", nil)
	return c.Redirect("/cart")
}
