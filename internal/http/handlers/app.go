package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/shopspring/decimal"

	applog "storefront/internal/log"
)

const (
	csrfCookie = "csrf_"

	bodyLimit      = 1 << 20
	uploadLimit    = 4 << 20
	defaultGlobal  = 120
	defaultLogin   = 5
	defaultSearch  = 20
	defaultAPIRate = 60
)

// AppOptions tunes the server. Zero limits fall back to the defaults above.
type AppOptions struct {
	TemplateDir  string
	Reload       bool
	CookieSecure bool
	AccessLog    bool

	GlobalLimit int
	LoginLimit  int
	SearchLimit int
	APILimit    int
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// NewViews builds the template engine with the helpers every page uses.
func NewViews(dir string, reload bool) *html.Engine {
	engine := html.New(dir, ".html")
	engine.Reload(reload)
	engine.AddFunc("money", func(d decimal.Decimal) string { return d.StringFixed(2) })
	engine.AddFunc("lower", strings.ToLower)
	return engine
}

// NewApp builds the fiber app with every middleware and route mounted.
func NewApp(d *Deps, opt AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		Views:        NewViews(opt.TemplateDir, opt.Reload),
		ErrorHandler: ErrorHandler,
		BodyLimit:    uploadLimit,
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(d.Metrics.Middleware())
	if opt.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(limitBody)
	app.Use(Identify(d.Auth))
	app.Use(limiter.New(limiter.Config{
		Max:        orDefault(opt.GlobalLimit, defaultGlobal),
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/static/") || strings.HasPrefix(p, "/media/") || p == "/healthz" || p == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return ErrorHandler(c, fiber.NewError(fiber.StatusTooManyRequests, "Too many requests. Please slow down."))
		},
	}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "form:csrf",
		CookieName:     csrfCookie,
		CookieSameSite: "Lax",
		CookieSecure:   opt.CookieSecure,
		ContextKey:     "csrf",
		Next:           isAPI,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", map[string]any{"error": err.Error()})
			c.Status(fiber.StatusForbidden)
			return render(c, "notfound", fiber.Map{"Message": "Security check failed. Please refresh and try again."})
		},
	}))
	app.Use(Chrome(d.Catalog, d.Cart))

	// ---------- Static assets ----------
	app.Get("/media/*", func(c *fiber.Ctx) error {
		path := c.Params("*")
		full, ok := d.Media.Resolve(path)
		if !ok {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendFile(full, true)
	})

	// ---------- Operational ----------
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	// ---------- Storefront ----------
	app.Get("/", d.CategoryHandler.Home)
	app.Get("/search", limiter.New(limiter.Config{
		Max:        orDefault(opt.SearchLimit, defaultSearch),
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.search.hit", nil)
			return ErrorHandler(c, fiber.NewError(fiber.StatusTooManyRequests, "Too many searches. Please wait a moment."))
		},
	}), d.SearchHandler.Search)
	app.Get("/category/:id", d.CategoryHandler.List)
	app.Get("/products/:id", d.ProductHandler.Detail)

	// Auth routes (login throttled)
	app.Get("/login", d.AuthHandler.LoginForm)
	app.Post("/login", limiter.New(limiter.Config{
		Max:        orDefault(opt.LoginLimit, defaultLogin),
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			c.Status(fiber.StatusTooManyRequests)
			return render(c, "login", fiber.Map{"Err": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	app.Get("/register", d.AuthHandler.RegisterForm)
	app.Post("/register", d.AuthHandler.Register)
	app.Post("/logout", d.AuthHandler.Logout)

	// Cart, checkout and orders
	requireUser := RequireUser()
	app.Get("/cart", requireUser, d.CartHandler.View)
	app.Post("/cart/add", requireUser, d.CartHandler.Add)
	app.Post("/cart/update", requireUser, d.CartHandler.Update)
	app.Post("/cart/remove", requireUser, d.CartHandler.Remove)
	app.Post("/cart/clear", requireUser, d.CartHandler.Clear)
	app.Get("/checkout", requireUser, d.CheckoutHandler.Begin)
	app.Post("/checkout/review", requireUser, d.CheckoutHandler.Review)
	app.Post("/checkout/complete", requireUser, d.CheckoutHandler.Complete)
	app.Get("/orders", requireUser, d.OrderHandler.History)
	app.Get("/orders/:id", requireUser, d.OrderHandler.View)
	app.Get("/orders/:id/confirmation", requireUser, d.OrderHandler.Confirmation)

	// Admin
	admin := app.Group("/admin", RequireAdmin())
	admin.Get("/", d.AdminHandler.Dashboard)
	admin.Get("/products", d.AdminHandler.Products)
	admin.Get("/products/new", d.AdminHandler.NewProduct)
	admin.Post("/products", d.AdminHandler.CreateProduct)
	admin.Get("/products/:id/edit", d.AdminHandler.EditProduct)
	admin.Post("/products/:id", d.AdminHandler.UpdateProduct)
	admin.Post("/products/:id/delete", d.AdminHandler.DeleteProduct)
	admin.Post("/products/:id/restore", d.AdminHandler.RestoreProduct)
	admin.Post("/products/:id/purge", d.AdminHandler.PurgeProduct)
	admin.Get("/categories", d.AdminHandler.Categories)
	admin.Get("/categories/new", d.AdminHandler.NewCategory)
	admin.Post("/categories", d.AdminHandler.CreateCategory)
	admin.Get("/categories/:id/edit", d.AdminHandler.EditCategory)
	admin.Post("/categories/:id", d.AdminHandler.UpdateCategory)
	admin.Post("/categories/:id/delete", d.AdminHandler.DeleteCategory)
	admin.Post("/categories/:id/restore", d.AdminHandler.RestoreCategory)
	admin.Post("/categories/:id/purge", d.AdminHandler.PurgeCategory)
	admin.Get("/orders", d.AdminHandler.OrdersPage)
	admin.Get("/orders/:id", d.AdminHandler.OrderDetail)
	admin.Post("/orders/:id/status", d.AdminHandler.UpdateOrderStatus)

	// JSON API
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        orDefault(opt.APILimit, defaultAPIRate),
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|api"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.api.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"message": "rate limit exceeded, retry soon", "error": "rate_limited"})
		},
	}))
	mustAdmin := requireAdminAPI()
	api.Get("/products", d.APIHandler.Products)
	api.Get("/products/search", d.APIHandler.SearchProducts)
	api.Get("/products/category/:categoryId", d.APIHandler.ProductsByCategory)
	api.Get("/products/:id", d.APIHandler.Product)
	api.Get("/products/:id/stock", d.InventoryHandler.Stock)
	api.Post("/products", mustAdmin, d.APIHandler.CreateProduct)
	api.Put("/products/:id", mustAdmin, d.APIHandler.UpdateProduct)
	api.Delete("/products/:id", mustAdmin, d.APIHandler.DeleteProduct)
	api.Get("/categories", d.APIHandler.Categories)
	api.Get("/categories/:id", d.APIHandler.Category)
	api.Get("/categories/:id/product-count", d.APIHandler.CategoryProductCount)
	api.Post("/categories", mustAdmin, d.APIHandler.CreateCategory)
	api.Put("/categories/:id", mustAdmin, d.APIHandler.UpdateCategory)
	api.Delete("/categories/:id", mustAdmin, d.APIHandler.DeleteCategory)

	// 404
	app.Use(func(c *fiber.Ctx) error {
		if isAPI(c) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Resource not found", "error": "not_found"})
		}
		c.Status(fiber.StatusNotFound)
		return render(c, "notfound", fiber.Map{"Message": "Page not found"})
	})

	return app
}

// limitBody caps request bodies at 1 MiB except the multipart admin product
// forms, which carry images.
func limitBody(c *fiber.Ctx) error {
	n := c.Request().Header.ContentLength()
	if n <= bodyLimit {
		return c.Next()
	}
	if strings.HasPrefix(c.Path(), "/admin/products") && strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return c.Next()
	}
	applog.Security(c, "request.too_large", map[string]any{"length": n})
	return ErrorHandler(c, fiber.NewError(fiber.StatusRequestEntityTooLarge, "Request is too large."))
}
