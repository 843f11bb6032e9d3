package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "storefront/internal/log"
	"storefront/internal/services"
)

const navCategoryCount = 6

// Chrome loads what every page header shows: the category menu and the
// cart badge.
func Chrome(catalog *services.CatalogService, cart *services.CartService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet || isAPI(c) {
			return c.Next()
		}
		ctx := c.UserContext()
		if nav, err := catalog.NavCategories(ctx, navCategoryCount); err == nil {
			c.Locals("nav", nav)
		} else {
			applog.Error(c, "chrome.nav.fail", err, nil)
		}
		if id := identityOf(c); id.Authenticated() {
			if n, err := cart.ItemCount(ctx, id); err == nil {
				c.Locals("cartCount", n)
			}
		}
		return c.Next()
	}
}

func render(c *fiber.Ctx, tmpl string, data fiber.Map) error {
	if data == nil {
		data = fiber.Map{}
	}
	if id := identityOf(c); id.Authenticated() {
		data["User"] = id
	}
	data["Nav"] = c.Locals("nav")
	data["CartCount"] = c.Locals("cartCount")
	// token the CSRF middleware put into Locals
	if tok, _ := c.Locals("csrf").(string); tok != "" {
		data["CSRFToken"] = tok
	} else if tok := c.Cookies(csrfCookie); tok != "" {
		data["CSRFToken"] = tok
	}
	return c.Render(tmpl, data)
}
