package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

const (
	sessionCookie = "sid"
	identityKey   = "identity"
)

// Identify resolves the session cookie to the caller's identity once per
// request. Unknown or expired sessions leave the caller anonymous.
func Identify(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := domain.Identity{}
		if sid := c.Cookies(sessionCookie); sid != "" {
			got, err := auth.Identify(c.UserContext(), sid)
			if err != nil {
				applog.Error(c, "auth.identify.fail", err, nil)
			} else {
				id = got
			}
		}
		c.Locals(identityKey, id)
		return c.Next()
	}
}

// identityOf returns the identity Identify stored for this request.
func identityOf(c *fiber.Ctx) domain.Identity {
	id, _ := c.Locals(identityKey).(domain.Identity)
	return id
}

func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := identityOf(c)
		if !id.Authenticated() {
			return c.Redirect("/login?next=" + url.QueryEscape(c.OriginalURL()))
		}
		if !id.IsAdmin {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).Render("notfound", fiber.Map{"Message": "Access denied"})
		}
		return c.Next()
	}
}

// RequireUser enforces that a user is logged in; otherwise redirect to login.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !identityOf(c).Authenticated() {
			return c.Redirect("/login?next=" + url.QueryEscape(c.OriginalURL()))
		}
		return c.Next()
	}
}

// requireAdminAPI is RequireAdmin for JSON callers.
func requireAdminAPI() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := identityOf(c)
		switch {
		case !id.Authenticated():
			return apiFail(c, "api.auth.required", domain.ErrUnauthenticated)
		case !id.IsAdmin:
			return apiFail(c, "access.denied.admin", domain.ErrForbidden)
		}
		return c.Next()
	}
}
