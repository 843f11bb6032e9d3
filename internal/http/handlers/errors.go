package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
)

// statusOf maps a service error onto an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrHasActiveChildren),
		errors.Is(err, domain.ErrHasChildren),
		errors.Is(err, domain.ErrEmptyCart):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrConcurrencyConflict):
		return fiber.StatusConflict
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// messageOf is the text shown to the caller. Internal errors never leak.
func messageOf(err error) string {
	var se *domain.StockError
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &se):
		return se.Error()
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, domain.ErrNotFound):
		return "The item you are looking for is not available."
	case errors.Is(err, domain.ErrForbidden):
		return "Access denied."
	case errors.Is(err, domain.ErrUnauthenticated):
		return "Please sign in to continue."
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "Quantity must be between 1 and 999."
	case errors.Is(err, domain.ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, domain.ErrHasActiveChildren):
		return "The category still has active products."
	case errors.Is(err, domain.ErrHasChildren):
		return "The category still has products. Delete them first."
	case errors.Is(err, domain.ErrInsufficientStock):
		return "Not enough stock."
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "Someone else changed this at the same time. Please reload and try again."
	}
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return fe.Message
	}
	return "Something went wrong. Please try again."
}

// kindOf is the short machine-readable error code in JSON bodies.
func kindOf(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusForbidden:
		return "forbidden"
	case fiber.StatusUnauthorized:
		return "unauthenticated"
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusConflict:
		return "conflict"
	case fiber.StatusRequestEntityTooLarge:
		return "too_large"
	case fiber.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	}
	return "internal"
}

func logFailure(c *fiber.Ctx, action string, status int, err error) {
	switch {
	case status >= fiber.StatusInternalServerError:
		applog.Error(c, action, err, nil)
	case status == fiber.StatusForbidden || status == fiber.StatusUnauthorized:
		applog.Security(c, action, map[string]any{"error": err.Error()})
	default:
		applog.Info(c, action, map[string]any{"error": err.Error()})
	}
}

// fail renders err as a page. Anonymous callers are sent to the login page.
func fail(c *fiber.Ctx, action string, err error) error {
	status := statusOf(err)
	logFailure(c, action, status, err)
	if status == fiber.StatusUnauthorized {
		return c.Redirect("/login?next=" + url.QueryEscape(c.OriginalURL()))
	}
	c.Status(status)
	return render(c, "notfound", fiber.Map{"Message": messageOf(err)})
}

// apiFail writes err as {"message", "error"}.
func apiFail(c *fiber.Ctx, action string, err error) error {
	status := statusOf(err)
	logFailure(c, action, status, err)
	return c.Status(status).JSON(fiber.Map{"message": messageOf(err), "error": kindOf(status)})
}

// ErrorHandler is the last stop for errors no handler turned into a response.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
	}
	if isAPI(c) {
		return c.Status(status).JSON(fiber.Map{"message": messageOf(err), "error": kindOf(status)})
	}
	if rerr := c.Status(status).Render("notfound", fiber.Map{"Message": messageOf(err)}); rerr != nil {
		return c.Status(status).SendString(messageOf(err))
	}
	return nil
}

func isAPI(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Path(), "/api/")
}
