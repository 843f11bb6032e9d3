package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/media"
	"storefront/internal/services"
	"storefront/internal/validate"
)

type AdminHandler struct {
	Admin *services.AdminService
}

// GET /admin
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.Admin.Dashboard(c.UserContext(), identityOf(c))
	if err != nil {
		return fail(c, "admin.dashboard.fail", err)
	}
	return render(c, "admin_dashboard", fiber.Map{"D": d})
}

func showDeleted(c *fiber.Ctx) bool {
	v := c.Query("includeDeleted")
	return v == "1" || v == "true"
}

// ---------- products ----------

// GET /admin/products
func (h *AdminHandler) Products(c *fiber.Ctx) error {
	ps, err := h.Admin.ListProducts(c.UserContext(), identityOf(c), showDeleted(c))
	if err != nil {
		return fail(c, "admin.products.list.fail", err)
	}
	return render(c, "admin_products", fiber.Map{"Products": ps, "IncludeDeleted": showDeleted(c)})
}

func (h *AdminHandler) productForm(c *fiber.Ctx, status int, p domain.Product, errMsg string) error {
	cats, err := h.Admin.ListCategories(c.UserContext(), identityOf(c), false)
	if err != nil {
		return fail(c, "admin.products.form.fail", err)
	}
	c.Status(status)
	return render(c, "admin_product_form", fiber.Map{"P": p, "Categories": cats, "Err": errMsg, "IsNew": p.ID == ""})
}

// GET /admin/products/new
func (h *AdminHandler) NewProduct(c *fiber.Ctx) error {
	return h.productForm(c, fiber.StatusOK, domain.Product{Active: true}, "")
}

// GET /admin/products/:id/edit
func (h *AdminHandler) EditProduct(c *fiber.Ctx) error {
	p, err := h.Admin.GetProduct(c.UserContext(), identityOf(c), c.Params("id"))
	if err != nil {
		return fail(c, "admin.products.edit.fail", err)
	}
	return h.productForm(c, fiber.StatusOK, p, "")
}

// productInput reads the product form. The image part is optional.
func productInput(c *fiber.Ctx) (services.ProductInput, *media.Image, error) {
	in := services.ProductInput{
		CategoryID:  c.FormValue("categoryId"),
		Name:        c.FormValue("name"),
		Description: c.FormValue("description"),
		Active:      c.FormValue("active") != "",
	}
	price, ok := validate.Price(c.FormValue("price"))
	if !ok {
		return in, nil, domain.Invalid("price", "enter a price such as 19.99")
	}
	in.Price = price
	if in.Stock, ok = validate.Qty(c.FormValue("stock")); !ok {
		return in, nil, domain.Invalid("stock", "stock must be a whole number")
	}
	if v := c.FormValue("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, nil, domain.Invalid("version", "bad version")
		}
		in.Version = n
	}
	fh, err := c.FormFile("image")
	if err != nil || fh == nil || fh.Size == 0 {
		return in, nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return in, nil, err
	}
	return in, &media.Image{Filename: fh.Filename, Size: fh.Size, Body: f}, nil
}

// echo rebuilds what the admin typed so a refused form is shown again filled in.
func echo(c *fiber.Ctx, id string, in services.ProductInput) domain.Product {
	return domain.Product{
		ID:          id,
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		Active:      in.Active,
		Version:     in.Version,
		ImageURL:    c.FormValue("imageUrl"),
	}
}

// formError re-renders the form for input errors and fails otherwise.
func (h *AdminHandler) formError(c *fiber.Ctx, action, id string, in services.ProductInput, err error) error {
	status := statusOf(err)
	if status != fiber.StatusBadRequest && status != fiber.StatusConflict {
		return fail(c, action, err)
	}
	applog.Info(c, action, map[string]any{"product_id": id, "error": err.Error()})
	return h.productForm(c, status, echo(c, id, in), messageOf(err))
}

// POST /admin/products
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	in, img, err := productInput(c)
	if closer, ok := imageCloser(img); ok {
		defer closer()
	}
	if err != nil {
		return h.formError(c, "admin.products.create.fail", "", in, err)
	}
	p, err := h.Admin.CreateProduct(c.UserContext(), identityOf(c), in, img)
	if err != nil {
		return h.formError(c, "admin.products.create.fail", "", in, err)
	}
	applog.Audit(c, "admin.products.create", map[string]any{"product_id": p.ID, "name": p.Name})
	return c.Redirect("/admin/products")
}

// POST /admin/products/:id
func (h *AdminHandler) UpdateProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	in, img, err := productInput(c)
	if closer, ok := imageCloser(img); ok {
		defer closer()
	}
	if err != nil {
		return h.formError(c, "admin.products.update.fail", id, in, err)
	}
	p, err := h.Admin.UpdateProduct(c.UserContext(), identityOf(c), id, in, img)
	if err != nil {
		return h.formError(c, "admin.products.update.fail", id, in, err)
	}
	applog.Audit(c, "admin.products.update", map[string]any{"product_id": p.ID, "version": p.Version})
	return c.Redirect("/admin/products")
}

func imageCloser(img *media.Image) (func(), bool) {
	if img == nil {
		return nil, false
	}
	if cl, ok := img.Body.(interface{ Close() error }); ok {
		return func() { _ = cl.Close() }, true
	}
	return nil, false
}

// POST /admin/products/:id/delete
func (h *AdminHandler) DeleteProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Admin.SoftDeleteProduct(c.UserContext(), identityOf(c), id); err != nil {
		return fail(c, "admin.products.delete.fail", err)
	}
	applog.Audit(c, "admin.products.delete", map[string]any{"product_id": id})
	return c.Redirect("/admin/products")
}

// POST /admin/products/:id/restore
func (h *AdminHandler) RestoreProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Admin.RestoreProduct(c.UserContext(), identityOf(c), id); err != nil {
		return fail(c, "admin.products.restore.fail", err)
	}
	applog.Audit(c, "admin.products.restore", map[string]any{"product_id": id})
	return c.Redirect("/admin/products?includeDeleted=1")
}

// POST /admin/products/:id/purge
func (h *AdminHandler) PurgeProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.Admin.HardDeleteProduct(c.UserContext(), identityOf(c), id); err != nil {
		return fail(c, "admin.products.purge.fail", err)
	}
	applog.Audit(c, "admin.products.purge", map[string]any{"product_id": id})
	return c.Redirect("/admin/products?includeDeleted=1")
}

// ---------- categories ----------

// GET /admin/categories
func (h *AdminHandler) Categories(c *fiber.Ctx) error {
	cats, err := h.Admin.ListCategories(c.UserContext(), identityOf(c), showDeleted(c))
	if err != nil {
		return fail(c, "admin.categories.list.fail", err)
	}
	return render(c, "admin_categories", fiber.Map{"Categories": cats, "IncludeDeleted": showDeleted(c)})
}

func (h *AdminHandler) categoryForm(c *fiber.Ctx, status int, cat domain.Category, errMsg string) error {
	c.Status(status)
	return render(c, "admin_category_form", fiber.Map{"C": cat, "Err": errMsg, "IsNew": cat.ID == ""})
}

// GET /admin/categories/new
func (h *AdminHandler) NewCategory(c *fiber.Ctx) error {
	return h.categoryForm(c, fiber.StatusOK, domain.Category{}, "")
}

// GET /admin/categories/:id/edit
func (h *AdminHandler) EditCategory(c *fiber.Ctx) error {
	cat, err := h.Admin.GetCategory(c.UserContext(), identityOf(c), c.Params("id"))
	if err != nil {
		return fail(c, "admin.categories.edit.fail", err)
	}
	return h.categoryForm(c, fiber.StatusOK, cat, "")
}

func (h *AdminHandler) categoryError(c *fiber.Ctx, action, id string, in services.CategoryInput, err error) error {
	if statusOf(err) != fiber.StatusBadRequest {
		return fail(c, action, err)
	}
	applog.Info(c, action, map[string]any{"category_id": id, "error": err.Error()})
	return h.categoryForm(c, fiber.StatusBadRequest,
		domain.Category{ID: id, Name: in.Name, Description: in.Description}, messageOf(err))
}

// POST /admin/categories
func (h *AdminHandler) CreateCategory(c *fiber.Ctx) error {
	in := services.CategoryInput{Name: c.FormValue("name"), Description: c.FormValue("description")}
	cat, err := h.Admin.CreateCategory(c.UserContext(), identityOf(c), in)
	if err != nil {
		return h.categoryError(c, "admin.categories.create.fail", "", in, err)
	}
	applog.Audit(c, "admin.categories.create", map[string]any{"category_id": cat.ID, "name": cat.Name})
	return c.Redirect("/admin/categories")
}

// POST /admin/categories/:id
func (h *AdminHandler) UpdateCategory(c *fiber.Ctx) error {
	id := c.Params("id")
	in := services.CategoryInput{Name: c.FormValue("name"), Description: c.FormValue("description")}
	if _, err := h.Admin.UpdateCategory(c.UserContext(), identityOf(c), id, in); err != nil {
		return h.categoryError(c, "admin.categories.update.fail", id, in, err)
	}
	applog.Audit(c, "admin.categories.update", map[string]any{"category_id": id})
	return c.Redirect("/admin/categories")
}

// categoryAction runs a lifecycle change and shows refusals on the list page.
func (h *AdminHandler) categoryAction(c *fiber.Ctx, action string, fn func(id string) error, back string) error {
	id := c.Params("id")
	if err := fn(id); err != nil {
		if statusOf(err) != fiber.StatusBadRequest {
			return fail(c, action+".fail", err)
		}
		applog.Info(c, action+".fail", map[string]any{"category_id": id, "error": err.Error()})
		cats, lerr := h.Admin.ListCategories(c.UserContext(), identityOf(c), true)
		if lerr != nil {
			return fail(c, action+".fail", lerr)
		}
		c.Status(fiber.StatusBadRequest)
		return render(c, "admin_categories", fiber.Map{"Categories": cats, "IncludeDeleted": true, "Err": messageOf(err)})
	}
	applog.Audit(c, action, map[string]any{"category_id": id})
	return c.Redirect(back)
}

// POST /admin/categories/:id/delete
func (h *AdminHandler) DeleteCategory(c *fiber.Ctx) error {
	return h.categoryAction(c, "admin.categories.delete", func(id string) error {
		return h.Admin.SoftDeleteCategory(c.UserContext(), identityOf(c), id)
	}, "/admin/categories")
}

// POST /admin/categories/:id/restore
func (h *AdminHandler) RestoreCategory(c *fiber.Ctx) error {
	return h.categoryAction(c, "admin.categories.restore", func(id string) error {
		return h.Admin.RestoreCategory(c.UserContext(), identityOf(c), id)
	}, "/admin/categories?includeDeleted=1")
}

// POST /admin/categories/:id/purge
func (h *AdminHandler) PurgeCategory(c *fiber.Ctx) error {
	return h.categoryAction(c, "admin.categories.purge", func(id string) error {
		return h.Admin.HardDeleteCategory(c.UserContext(), identityOf(c), id)
	}, "/admin/categories?includeDeleted=1")
}

// ---------- orders ----------

// GET /admin/orders
func (h *AdminHandler) OrdersPage(c *fiber.Ctx) error {
	ords, err := h.Admin.ListOrders(c.UserContext(), identityOf(c), 100)
	if err != nil {
		return fail(c, "admin.orders.list.fail", err)
	}
	return render(c, "admin_orders", fiber.Map{"Orders": ords, "Statuses": orderStatuses})
}

var orderStatuses = []string{domain.OrderPending, domain.OrderShipped, domain.OrderDelivered, domain.OrderCancelled}

// GET /admin/orders/:id
func (h *AdminHandler) OrderDetail(c *fiber.Ctx) error {
	o, err := h.Admin.GetOrder(c.UserContext(), identityOf(c), c.Params("id"))
	if err != nil {
		return fail(c, "admin.orders.view.fail", err)
	}
	return render(c, "order", fiber.Map{"Order": o, "Items": o.Lines, "Statuses": orderStatuses, "AdminView": true})
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	status := strings.TrimSpace(c.FormValue("status"))
	tracking := c.FormValue("trackingNumber")
	if err := h.Admin.UpdateOrderStatus(c.UserContext(), identityOf(c), id, status, tracking); err != nil {
		return fail(c, "admin.orders.update.fail", err)
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": status})
	return c.Redirect("/admin/orders")
}
