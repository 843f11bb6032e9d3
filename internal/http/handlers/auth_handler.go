package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/log"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type AuthHandler struct {
	Auth         *services.AuthService
	SecureCookie bool
}

func (h *AuthHandler) setSID(c *fiber.Ctx, sid string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Secure:   h.SecureCookie,
		Expires:  expires,
	})
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	return next
}

func (h *AuthHandler) LoginForm(c *fiber.Ctx) error {
	return render(c, "login", fiber.Map{"Err": "", "Next": safeNext(c.Query("next"))})
}

// startSession binds a fresh session id to the user, dropping any previous one.
func (h *AuthHandler) startSession(c *fiber.Ctx, email, pass string) error {
	if old := c.Cookies(sessionCookie); old != "" {
		_ = h.Auth.Logout(c.UserContext(), old)
	}
	sid := uuid.NewString()
	if _, err := h.Auth.Login(c.UserContext(), sid, email, pass); err != nil {
		return err
	}
	h.setSID(c, sid, time.Time{})
	return nil
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	email := c.FormValue("email")
	pass := c.FormValue("password")
	next := safeNext(c.FormValue("next"))
	loginFail := func(reason string) error {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": reason})
		c.Status(fiber.StatusUnauthorized)
		return render(c, "login", fiber.Map{"Err": "Invalid email or password", "Email": email, "Next": next})
	}
	if _, ok := validate.Email(email); !ok {
		return loginFail("bad_format")
	}
	if !validate.Password(pass) {
		return loginFail("bad_password_format")
	}
	if err := h.startSession(c, email, pass); err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			return loginFail("bad_credentials")
		}
		return fail(c, "auth.login.error", err)
	}

	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.Redirect(next)
}

func (h *AuthHandler) RegisterForm(c *fiber.Ctx) error {
	return render(c, "register", fiber.Map{"Form": services.Registration{}})
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	in := services.Registration{
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
		FullName: c.FormValue("fullName"),
		Phone:    c.FormValue("phone"),
		Address:  c.FormValue("address"),
		City:     c.FormValue("city"),
		ZipCode:  c.FormValue("zipCode"),
	}
	if in.Password != c.FormValue("confirmPassword") {
		c.Status(fiber.StatusBadRequest)
		return render(c, "register", fiber.Map{"Err": "Passwords do not match", "Form": in})
	}
	u, err := h.Auth.Register(c.UserContext(), in)
	if err != nil {
		if statusOf(err) != fiber.StatusBadRequest {
			return fail(c, "auth.register.error", err)
		}
		log.Info(c, "auth.register.fail", map[string]any{"email": in.Email, "error": err.Error()})
		c.Status(fiber.StatusBadRequest)
		return render(c, "register", fiber.Map{"Err": messageOf(err), "Form": in})
	}
	log.Audit(c, "auth.register.success", map[string]any{"user_id": u.ID})
	if err := h.startSession(c, in.Email, in.Password); err != nil {
		return fail(c, "auth.register.login", err)
	}
	return c.Redirect("/")
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if sid := c.Cookies(sessionCookie); sid != "" {
		if err := h.Auth.Logout(c.UserContext(), sid); err != nil {
			log.Error(c, "auth.logout.fail", err, nil)
		}
	}
	h.setSID(c, "", time.Now().Add(-1*time.Hour))
	log.Audit(c, "auth.logout", nil)
	return c.Redirect("/")
}
