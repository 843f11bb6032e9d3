package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/log"
	"storefront/internal/repos"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

// filterFrom reads the q and sort query parameters shared by catalog pages.
func filterFrom(c *fiber.Ctx) (services.ProductFilter, bool) {
	f := services.ProductFilter{Sort: c.Query("sort")}
	if !repos.ValidSort(f.Sort) {
		f.Sort = repos.SortNameAsc
	}
	if raw := c.Query("q"); strings.TrimSpace(raw) != "" {
		q, ok := validate.Q(raw)
		if !ok {
			log.Security(c, "validation.fail", map[string]any{"field": "q"})
			return f, false
		}
		f.Term = q
	}
	return f, true
}

// Home is the catalog landing page with optional search and sort.
func (h *CategoryHandler) Home(c *fiber.Ctx) error {
	f, ok := filterFrom(c)
	data := fiber.Map{"Q": f.Term, "Sort": f.Sort}
	if !ok {
		data["Err"] = "Enter a valid keyword (letters/numbers only)"
		c.Status(fiber.StatusBadRequest)
		return render(c, "home", data)
	}
	ctx := c.UserContext()
	cats, err := h.Catalog.ListCategories(ctx)
	if err != nil {
		return fail(c, "catalog.home.fail", err)
	}
	products, err := h.Catalog.ListProducts(ctx, f)
	if err != nil {
		return fail(c, "catalog.home.fail", err)
	}
	data["Categories"] = cats
	data["Products"] = products
	return render(c, "home", data)
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	catID, ok := validate.ID(c.Params("id"))
	if !ok {
		log.Security(c, "validation.fail", map[string]any{"field": "category"})
		c.Status(fiber.StatusNotFound)
		return render(c, "notfound", fiber.Map{"Message": "Category not found"})
	}
	f, ok := filterFrom(c)
	if !ok {
		f.Term = ""
	}
	cat, products, err := h.Catalog.ProductsInCategory(c.UserContext(), catID, f.Term, f.Sort)
	if err != nil {
		return fail(c, "catalog.category.fail", err)
	}
	return render(c, "category", fiber.Map{"Category": cat, "Products": products, "Q": f.Term, "Sort": f.Sort})
}
