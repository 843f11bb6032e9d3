package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/media"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

// AdminService backs the back-office. Every call checks the admin capability.
type AdminService struct {
	Store  *repos.Store
	Cats   *repos.CategoryRepo
	Prods  *repos.ProductRepo
	Inv    *repos.InventoryRepo
	Orders *repos.OrderRepo
	Media  *media.Store
}

func requireAdmin(id domain.Identity) error {
	if !id.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if !id.IsAdmin {
		return domain.ErrForbidden
	}
	return nil
}

// ProductInput is the editable part of a product.
type ProductInput struct {
	CategoryID  string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Active      bool
	// ImageURL keeps or sets an image without an upload; empty means placeholder on create.
	ImageURL string
	// Version is the version the caller edited; zero skips the stale-write check.
	Version int
}

func (s *AdminService) cleanProduct(ctx context.Context, in ProductInput) (ProductInput, error) {
	var ok bool
	if in.Name, ok = validate.Name(in.Name, 200); !ok {
		return in, domain.Invalid("name", "name is required (max 200 characters)")
	}
	if in.Description, ok = validate.Text(in.Description, 2000); !ok {
		return in, domain.Invalid("description", "description is too long (max 2000 characters)")
	}
	if !validate.PriceInRange(in.Price) {
		return in, domain.Invalid("price", "price must be between 0.01 and 999999.99")
	}
	if in.Stock < 0 {
		return in, domain.Invalid("stock", "stock cannot be negative")
	}
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.ImageURL != "" && !media.ValidURL(in.ImageURL) {
		return in, domain.Invalid("imageUrl", "imageUrl must be an image uploaded to this store")
	}
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if _, err := s.Cats.Get(ctx, in.CategoryID, repos.LiveOnly); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return in, domain.Invalid("categoryId", "choose an existing category")
		}
		return in, err
	}
	return in, nil
}

func (s *AdminService) ListProducts(ctx context.Context, id domain.Identity, includeDeleted bool) ([]domain.Product, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	scope := repos.LiveOnly
	if includeDeleted {
		scope = repos.WithDeleted
	}
	return s.Prods.List(ctx, repos.ProductQuery{Scope: scope, Sort: repos.SortNameAsc})
}

// GetProduct returns a product in any lifecycle state.
func (s *AdminService) GetProduct(ctx context.Context, id domain.Identity, productID string) (domain.Product, error) {
	if err := requireAdmin(id); err != nil {
		return domain.Product{}, err
	}
	return s.Prods.Get(ctx, productID, repos.WithDeleted)
}

func (s *AdminService) CreateProduct(ctx context.Context, id domain.Identity, in ProductInput, img *media.Image) (domain.Product, error) {
	if err := requireAdmin(id); err != nil {
		return domain.Product{}, err
	}
	in, err := s.cleanProduct(ctx, in)
	if err != nil {
		return domain.Product{}, err
	}
	url := in.ImageURL
	if img != nil {
		if url, err = s.Media.Save(*img); err != nil {
			return domain.Product{}, err
		}
	}
	if url == "" {
		url = media.Placeholder
	}
	p := domain.Product{
		ID:          uuid.NewString(),
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    url,
		Active:      in.Active,
	}
	if err := s.Prods.Create(ctx, p); err != nil {
		if img != nil {
			_ = s.Media.Delete(url)
		}
		return domain.Product{}, err
	}
	return s.Prods.Get(ctx, p.ID, repos.LiveOnly)
}

// UpdateProduct edits a live product. A new image replaces the stored one,
// which is deleted once the update is committed.
func (s *AdminService) UpdateProduct(ctx context.Context, id domain.Identity, productID string, in ProductInput, img *media.Image) (domain.Product, error) {
	if err := requireAdmin(id); err != nil {
		return domain.Product{}, err
	}
	cur, err := s.Prods.Get(ctx, productID, repos.LiveOnly)
	if err != nil {
		return domain.Product{}, err
	}
	if in, err = s.cleanProduct(ctx, in); err != nil {
		return domain.Product{}, err
	}

	url := cur.ImageURL
	if in.ImageURL != "" {
		url = in.ImageURL
	}
	if img != nil {
		if url, err = s.Media.Save(*img); err != nil {
			return domain.Product{}, err
		}
	}
	next := domain.Product{
		ID:          productID,
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		ImageURL:    url,
		Active:      in.Active,
	}
	if err := s.Prods.Update(ctx, next, in.Version); err != nil {
		if img != nil {
			_ = s.Media.Delete(url)
		}
		return domain.Product{}, err
	}
	if url != cur.ImageURL {
		s.dropImage(ctx, cur.ImageURL)
	}
	return s.Prods.Get(ctx, productID, repos.LiveOnly)
}

func (s *AdminService) SoftDeleteProduct(ctx context.Context, id domain.Identity, productID string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	if _, err := s.Prods.Get(ctx, productID, repos.LiveOnly); err != nil {
		return err
	}
	return s.Prods.SetLifecycle(ctx, productID, domain.LifecycleDeleted)
}

// RestoreProduct brings a deleted product back. Restoring a live one is a no-op.
// A product whose category is deleted cannot come back on its own.
func (s *AdminService) RestoreProduct(ctx context.Context, id domain.Identity, productID string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	p, err := s.Prods.Get(ctx, productID, repos.WithDeleted)
	if err != nil {
		return err
	}
	if !p.Lifecycle.Deleted() {
		return nil
	}
	if _, err := s.Cats.Get(ctx, p.CategoryID, repos.LiveOnly); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("categoryId", "restore the product's category first")
		}
		return err
	}
	return s.Prods.SetLifecycle(ctx, productID, domain.LifecycleActive)
}

// HardDeleteProduct removes the row and its stored image. Past order lines keep their snapshot.
func (s *AdminService) HardDeleteProduct(ctx context.Context, id domain.Identity, productID string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	p, err := s.Prods.Get(ctx, productID, repos.WithDeleted)
	if err != nil {
		return err
	}
	if err := s.Prods.Delete(ctx, productID); err != nil {
		return err
	}
	s.dropImage(ctx, p.ImageURL)
	return nil
}

// dropImage deletes a stored image once no product row points at it.
func (s *AdminService) dropImage(ctx context.Context, url string) {
	n, err := s.Prods.ImageRefs(ctx, url)
	if err != nil {
		applog.Logger().WithError(err).Warn("media.refs_failed")
		return
	}
	if n > 0 {
		return
	}
	if err := s.Media.Delete(url); err != nil {
		applog.Logger().WithError(err).Warn("media.delete_failed")
	}
}

// CategoryInput is the editable part of a category.
type CategoryInput struct {
	Name        string
	Description string
}

func cleanCategory(in CategoryInput) (CategoryInput, error) {
	var ok bool
	if in.Name, ok = validate.Name(in.Name, 100); !ok {
		return in, domain.Invalid("name", "name is required (max 100 characters)")
	}
	if in.Description, ok = validate.Text(in.Description, 500); !ok {
		return in, domain.Invalid("description", "description is too long (max 500 characters)")
	}
	return in, nil
}

func (s *AdminService) ListCategories(ctx context.Context, id domain.Identity, includeDeleted bool) ([]domain.Category, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	scope := repos.LiveOnly
	if includeDeleted {
		scope = repos.WithDeleted
	}
	return s.Cats.List(ctx, scope)
}

func (s *AdminService) GetCategory(ctx context.Context, id domain.Identity, categoryID string) (domain.Category, error) {
	if err := requireAdmin(id); err != nil {
		return domain.Category{}, err
	}
	return s.Cats.Get(ctx, categoryID, repos.WithDeleted)
}

func (s *AdminService) CreateCategory(ctx context.Context, id domain.Identity, in CategoryInput) (domain.Category, error) {
	if err := requireAdmin(id); err != nil {
		return domain.Category{}, err
	}
	in, err := cleanCategory(in)
	if err != nil {
		return domain.Category{}, err
	}
	c := domain.Category{ID: uuid.NewString(), Name: in.Name, Description: in.Description}
	err = s.Store.InTx(ctx, func(tx *sqlx.Tx) error {
		cats := s.Cats.WithTx(tx)
		if taken, err := cats.NameTaken(ctx, c.Name, ""); err != nil {
			return err
		} else if taken {
			return domain.Invalid("name", "a category with this name already exists")
		}
		return cats.Create(ctx, c)
	})
	if err != nil {
		return domain.Category{}, err
	}
	return s.Cats.Get(ctx, c.ID, repos.LiveOnly)
}

func (s *AdminService) UpdateCategory(ctx context.Context, id domain.Identity, categoryID string, in CategoryInput) (domain.Category, error) {
	if err := requireAdmin(id); err != nil {
		return domain.Category{}, err
	}
	in, err := cleanCategory(in)
	if err != nil {
		return domain.Category{}, err
	}
	err = s.Store.InTx(ctx, func(tx *sqlx.Tx) error {
		cats := s.Cats.WithTx(tx)
		if _, err := cats.Get(ctx, categoryID, repos.LiveOnly); err != nil {
			return err
		}
		if taken, err := cats.NameTaken(ctx, in.Name, categoryID); err != nil {
			return err
		} else if taken {
			return domain.Invalid("name", "a category with this name already exists")
		}
		return cats.Update(ctx, domain.Category{ID: categoryID, Name: in.Name, Description: in.Description})
	})
	if err != nil {
		return domain.Category{}, err
	}
	return s.Cats.Get(ctx, categoryID, repos.LiveOnly)
}

// SoftDeleteCategory refuses while any live product still references the category.
func (s *AdminService) SoftDeleteCategory(ctx context.Context, id domain.Identity, categoryID string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	return s.Store.InTx(ctx, func(tx *sqlx.Tx) error {
		cats := s.Cats.WithTx(tx)
		if _, err := cats.Get(ctx, categoryID, repos.LiveOnly); err != nil {
			return err
		}
		n, err := cats.CountProducts(ctx, categoryID, repos.LiveOnly)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrHasActiveChildren
		}
		return cats.SetLifecycle(ctx, categoryID, domain.LifecycleDeleted)
	})
}

// RestoreCategory is a no-op for live categories and refuses when a live
// category took the name in the meantime.
func (s *AdminService) RestoreCategory(ctx context.Context, id domain.Identity, categoryID string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	return s.Store.InTx(ctx, func(tx *sqlx.Tx) error {
		cats := s.Cats.WithTx(tx)
		c, err := cats.Get(ctx, categoryID, repos.WithDeleted)
		if err != nil {
			return err
		}
		if !c.Lifecycle.Deleted() {
			return nil
		}
		if taken, err := cats.NameTaken(ctx, c.Name, c.ID); err != nil {
			return err
		} else if taken {
			return domain.Invalid("name", "a live category already uses this name")
		}
		return cats.SetLifecycle(ctx, categoryID, domain.LifecycleActive)
	})
}

// HardDeleteCategory refuses while any product, deleted or not, references the category.
func (s *AdminService) HardDeleteCategory(ctx context.Context, id domain.Identity, categoryID string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	return s.Store.InTx(ctx, func(tx *sqlx.Tx) error {
		cats := s.Cats.WithTx(tx)
		if _, err := cats.Get(ctx, categoryID, repos.WithDeleted); err != nil {
			return err
		}
		n, err := cats.CountProducts(ctx, categoryID, repos.WithDeleted)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrHasChildren
		}
		return cats.Delete(ctx, categoryID)
	})
}

type Dashboard struct {
	Categories        int
	DeletedCategories int
	Products          repos.ProductStats
	PendingOrders     int
	LowStock          []repos.StockRow
}

func (s *AdminService) Dashboard(ctx context.Context, id domain.Identity) (Dashboard, error) {
	if err := requireAdmin(id); err != nil {
		return Dashboard{}, err
	}
	var d Dashboard
	var err error
	if d.Categories, err = s.Cats.CountByLifecycle(ctx, domain.LifecycleActive); err != nil {
		return d, err
	}
	if d.DeletedCategories, err = s.Cats.CountByLifecycle(ctx, domain.LifecycleDeleted); err != nil {
		return d, err
	}
	if d.Products, err = s.Prods.Stats(ctx); err != nil {
		return d, err
	}
	if d.PendingOrders, err = s.Orders.CountByStatus(ctx, domain.OrderPending); err != nil {
		return d, err
	}
	d.LowStock, err = s.Inv.LowStock(ctx, 10)
	return d, err
}

func (s *AdminService) ListOrders(ctx context.Context, id domain.Identity, limit int) ([]domain.Order, error) {
	if err := requireAdmin(id); err != nil {
		return nil, err
	}
	return s.Orders.ListLatest(ctx, limit)
}

func (s *AdminService) GetOrder(ctx context.Context, id domain.Identity, orderID string) (domain.Order, error) {
	if err := requireAdmin(id); err != nil {
		return domain.Order{}, err
	}
	return s.Orders.Get(ctx, orderID)
}

// UpdateOrderStatus sets any known status; moving to Shipped or Delivered
// stamps the matching time.
func (s *AdminService) UpdateOrderStatus(ctx context.Context, id domain.Identity, orderID, status, tracking string) error {
	if err := requireAdmin(id); err != nil {
		return err
	}
	if !domain.KnownOrderStatus(status) {
		return domain.Invalid("status", "unknown order status")
	}
	tracking, ok := validate.Text(tracking, 100)
	if !ok {
		return domain.Invalid("trackingNumber", "tracking number is too long")
	}
	var shipped, delivered string
	ts := time.Now().UTC().Format(time.RFC3339)
	switch status {
	case domain.OrderShipped:
		shipped = ts
	case domain.OrderDelivered:
		delivered = ts
	}
	return s.Orders.UpdateStatus(ctx, orderID, status, tracking, shipped, delivered)
}
