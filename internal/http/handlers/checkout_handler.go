package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	"storefront/internal/log"
	"storefront/internal/services"
)

type CheckoutHandler struct {
	Checkout *services.CheckoutService
}

func shippingForm(c *fiber.Ctx) domain.Shipping {
	return domain.Shipping{
		Address: c.FormValue("address"),
		City:    c.FormValue("city"),
		ZipCode: c.FormValue("zipCode"),
		Phone:   c.FormValue("phone"),
		Notes:   c.FormValue("notes"),
	}
}

// Begin shows the shipping form prefilled from the profile.
func (h *CheckoutHandler) Begin(c *fiber.Ctx) error {
	view, err := h.Checkout.Begin(c.UserContext(), identityOf(c))
	if errors.Is(err, domain.ErrEmptyCart) {
		return c.Redirect("/cart")
	}
	if err != nil {
		return fail(c, "checkout.begin.fail", err)
	}
	return render(c, "checkout", fiber.Map{"Cart": view.Cart, "Ship": view.Shipping})
}

// Review validates the shipping form and shows the order summary with the
// key the final submission carries.
func (h *CheckoutHandler) Review(c *fiber.Ctx) error {
	ship := shippingForm(c)
	view, err := h.Checkout.Review(c.UserContext(), identityOf(c), c.Cookies(sessionCookie), ship)
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return c.Redirect("/cart")
	case errors.Is(err, domain.ErrValidation):
		log.Info(c, "checkout.review.invalid", map[string]any{"error": err.Error()})
		view, berr := h.Checkout.Begin(c.UserContext(), identityOf(c))
		if berr != nil {
			return fail(c, "checkout.review.fail", berr)
		}
		c.Status(fiber.StatusBadRequest)
		return render(c, "checkout", fiber.Map{"Cart": view.Cart, "Ship": ship, "Err": messageOf(err)})
	case err != nil:
		return fail(c, "checkout.review.fail", err)
	}
	return render(c, "review", fiber.Map{"Cart": view.Cart, "Ship": view.Shipping, "Key": view.IdempotencyKey})
}

// Complete places the order. Resubmitting the same form lands on the same order.
func (h *CheckoutHandler) Complete(c *fiber.Ctx) error {
	key := c.FormValue("idempotencyKey")
	order, err := h.Checkout.Complete(c.UserContext(), identityOf(c), c.Cookies(sessionCookie), key)
	if err != nil {
		var se *domain.StockError
		if errors.As(err, &se) {
			log.Info(c, "order.place.stock", map[string]any{"product_id": se.ProductID, "requested": se.Requested, "available": se.Available})
		}
		if errors.Is(err, domain.ErrEmptyCart) {
			return c.Redirect("/cart")
		}
		return fail(c, "order.place.fail", err)
	}
	log.Audit(c, "order.place", map[string]any{
		"order_id": order.ID,
		"total":    order.Total.StringFixed(2),
		"lines":    len(order.Lines),
	})
	return c.Redirect("/orders/" + order.ID + "/confirmation")
}
