package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/services"
)

// APIHandler serves /api/products and /api/categories.
type APIHandler struct {
	Catalog *services.CatalogService
	Admin   *services.AdminService
}

type productBody struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"categoryId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsActive    *bool           `json:"isActive"`
	ImageURL    string          `json:"imageUrl"`
	Version     int             `json:"version"`
}

func (b productBody) input() services.ProductInput {
	active := true
	if b.IsActive != nil {
		active = *b.IsActive
	}
	return services.ProductInput{
		CategoryID:  b.CategoryID,
		Name:        b.Name,
		Description: b.Description,
		Price:       b.Price,
		Stock:       b.Stock,
		Active:      active,
		ImageURL:    b.ImageURL,
		Version:     b.Version,
	}
}

type categoryBody struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// parseJSON decodes a JSON request body. Other content types are refused so
// cookie-authenticated writes cannot come from plain cross-site forms.
func parseJSON(c *fiber.Ctx, out any) error {
	if !c.Is("json") {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "request body must be application/json")
	}
	if err := c.BodyParser(out); err != nil {
		return domain.Invalid("body", "malformed JSON body")
	}
	return nil
}

func (h *APIHandler) Products(c *fiber.Ctx) error {
	ps, err := h.Catalog.ListProducts(c.UserContext(), services.ProductFilter{})
	if err != nil {
		return apiFail(c, "api.products.list.fail", err)
	}
	return c.JSON(ps)
}

func (h *APIHandler) SearchProducts(c *fiber.Ctx) error {
	ps, err := h.Catalog.Search(c.UserContext(), c.Query("searchTerm"))
	if err != nil {
		return apiFail(c, "api.products.search.fail", err)
	}
	return c.JSON(ps)
}

func (h *APIHandler) ProductsByCategory(c *fiber.Ctx) error {
	_, ps, err := h.Catalog.ProductsInCategory(c.UserContext(), c.Params("categoryId"), "", "")
	if err != nil {
		return apiFail(c, "api.products.category.fail", err)
	}
	return c.JSON(ps)
}

func (h *APIHandler) Product(c *fiber.Ctx) error {
	p, err := h.Catalog.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return apiFail(c, "api.products.get.fail", err)
	}
	return c.JSON(p)
}

func (h *APIHandler) CreateProduct(c *fiber.Ctx) error {
	var body productBody
	if err := parseJSON(c, &body); err != nil {
		return apiFail(c, "api.products.create.fail", err)
	}
	p, err := h.Admin.CreateProduct(c.UserContext(), identityOf(c), body.input(), nil)
	if err != nil {
		return apiFail(c, "api.products.create.fail", err)
	}
	applog.Audit(c, "api.products.create", map[string]any{"product_id": p.ID})
	c.Location("/api/products/" + p.ID)
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *APIHandler) UpdateProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	var body productBody
	if err := parseJSON(c, &body); err != nil {
		return apiFail(c, "api.products.update.fail", err)
	}
	if body.ID != "" && body.ID != id {
		return apiFail(c, "api.products.update.fail", domain.Invalid("id", "body id does not match the path"))
	}
	if _, err := h.Admin.UpdateProduct(c.UserContext(), identityOf(c), id, body.input(), nil); err != nil {
		return apiFail(c, "api.products.update.fail", err)
	}
	applog.Audit(c, "api.products.update", map[string]any{"product_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandler) DeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Admin.SoftDeleteProduct(c.UserContext(), identityOf(c), id); err != nil {
		return apiFail(c, "api.products.delete.fail", err)
	}
	applog.Audit(c, "api.products.delete", map[string]any{"product_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// Categories lists live categories, each with its live products.
func (h *APIHandler) Categories(c *fiber.Ctx) error {
	ctx := c.UserContext()
	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		return apiFail(c, "api.categories.list.fail", err)
	}
	ps, err := h.Catalog.ListProducts(ctx, services.ProductFilter{})
	if err != nil {
		return apiFail(c, "api.categories.list.fail", err)
	}
	byCat := map[string][]domain.Product{}
	for _, p := range ps {
		byCat[p.CategoryID] = append(byCat[p.CategoryID], p)
	}
	for i := range cats {
		cats[i].Products = byCat[cats[i].ID]
	}
	return c.JSON(cats)
}

func (h *APIHandler) Category(c *fiber.Ctx) error {
	cat, err := h.Catalog.GetCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return apiFail(c, "api.categories.get.fail", err)
	}
	return c.JSON(cat)
}

func (h *APIHandler) CategoryProductCount(c *fiber.Ctx) error {
	cat, n, err := h.Catalog.ProductCount(c.UserContext(), c.Params("id"))
	if err != nil {
		return apiFail(c, "api.categories.count.fail", err)
	}
	return c.JSON(fiber.Map{"categoryId": cat.ID, "categoryName": cat.Name, "productCount": n})
}

func (h *APIHandler) CreateCategory(c *fiber.Ctx) error {
	var body categoryBody
	if err := parseJSON(c, &body); err != nil {
		return apiFail(c, "api.categories.create.fail", err)
	}
	cat, err := h.Admin.CreateCategory(c.UserContext(), identityOf(c), services.CategoryInput{Name: body.Name, Description: body.Description})
	if err != nil {
		return apiFail(c, "api.categories.create.fail", err)
	}
	applog.Audit(c, "api.categories.create", map[string]any{"category_id": cat.ID})
	c.Location("/api/categories/" + cat.ID)
	return c.Status(fiber.StatusCreated).JSON(cat)
}

func (h *APIHandler) UpdateCategory(c *fiber.Ctx) error {
	id := c.Params("id")
	var body categoryBody
	if err := parseJSON(c, &body); err != nil {
		return apiFail(c, "api.categories.update.fail", err)
	}
	if body.ID != "" && body.ID != id {
		return apiFail(c, "api.categories.update.fail", domain.Invalid("id", "body id does not match the path"))
	}
	if _, err := h.Admin.UpdateCategory(c.UserContext(), identityOf(c), id, services.CategoryInput{Name: body.Name, Description: body.Description}); err != nil {
		return apiFail(c, "api.categories.update.fail", err)
	}
	applog.Audit(c, "api.categories.update", map[string]any{"category_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandler) DeleteCategory(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Admin.SoftDeleteCategory(c.UserContext(), identityOf(c), id); err != nil {
		return apiFail(c, "api.categories.delete.fail", err)
	}
	applog.Audit(c, "api.categories.delete", map[string]any{"category_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
