package services_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/media"
	"storefront/internal/repos"
	"storefront/internal/services"
)

func productInput(cat string) services.ProductInput {
	return services.ProductInput{
		CategoryID:  cat,
		Name:        "Atari 2600",
		Description: "Woodgrain edition",
		Price:       decimal.RequireFromString("149.50"),
		Stock:       4,
		Active:      true,
	}
}

func TestAdmin_RequiresAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.admin.ListProducts(ctx, alice, false)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.admin.CreateCategory(ctx, alice, services.CategoryInput{Name: "Games"})
	require.ErrorIs(t, err, domain.ErrForbidden)
	require.ErrorIs(t, e.admin.SoftDeleteProduct(ctx, domain.Identity{}, "gbc-001"), domain.ErrUnauthenticated)
	_, err = e.admin.Dashboard(ctx, bob)
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestAdmin_ProductLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p, err := e.admin.CreateProduct(ctx, admin, productInput("consoles"), nil)
	require.NoError(t, err)
	require.Equal(t, media.Placeholder, p.ImageURL)
	require.Equal(t, 1, p.Version)
	require.Equal(t, "Consoles", p.CategoryName)

	require.NoError(t, e.admin.SoftDeleteProduct(ctx, admin, p.ID))
	_, err = e.catalog.GetProduct(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	live, err := e.admin.ListProducts(ctx, admin, false)
	require.NoError(t, err)
	all, err := e.admin.ListProducts(ctx, admin, true)
	require.NoError(t, err)
	require.Len(t, all, len(live)+1)

	// restore twice: the second call is a no-op
	require.NoError(t, e.admin.RestoreProduct(ctx, admin, p.ID))
	require.NoError(t, e.admin.RestoreProduct(ctx, admin, p.ID))
	got, err := e.catalog.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, domain.LifecycleActive, got.Lifecycle)

	require.NoError(t, e.admin.HardDeleteProduct(ctx, admin, p.ID))
	_, err = e.admin.GetProduct(ctx, admin, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdmin_ProductValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := productInput("consoles")
	in.Price = decimal.Zero
	_, err := e.admin.CreateProduct(ctx, admin, in, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	in = productInput("consoles")
	in.Price = decimal.RequireFromString("1000000")
	_, err = e.admin.CreateProduct(ctx, admin, in, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	in = productInput("consoles")
	in.Name = strings.Repeat("x", 201)
	_, err = e.admin.CreateProduct(ctx, admin, in, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	in = productInput("consoles")
	in.Stock = -1
	_, err = e.admin.CreateProduct(ctx, admin, in, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = e.admin.CreateProduct(ctx, admin, productInput("nope"), nil)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "categoryId", ve.Field)
}

func TestAdmin_UpdateProductChecksVersion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p, err := e.admin.GetProduct(ctx, admin, "gbc-001")
	require.NoError(t, err)

	in := productInput("consoles")
	in.Version = p.Version
	up, err := e.admin.UpdateProduct(ctx, admin, p.ID, in, nil)
	require.NoError(t, err)
	require.Equal(t, p.Version+1, up.Version)
	require.Equal(t, "Atari 2600", up.Name)

	// the same stale version is rejected
	_, err = e.admin.UpdateProduct(ctx, admin, p.ID, in, nil)
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	// no version means last write wins
	in.Version = 0
	in.Stock = 9
	up, err = e.admin.UpdateProduct(ctx, admin, p.ID, in, nil)
	require.NoError(t, err)
	require.Equal(t, 9, up.Stock)
}

func TestAdmin_ImageReplaceDeletesOld(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	dir := e.admin.Media.Dir

	p, err := e.admin.CreateProduct(ctx, admin, productInput("consoles"), &media.Image{
		Filename: "front view.png", Size: 4, Body: strings.NewReader("png!"),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(p.ImageURL, "/media/products/"))
	first := filepath.Join(dir, "products", filepath.Base(p.ImageURL))
	require.FileExists(t, first)

	in := productInput("consoles")
	up, err := e.admin.UpdateProduct(ctx, admin, p.ID, in, &media.Image{
		Filename: "back.jpg", Size: 4, Body: strings.NewReader("jpg!"),
	})
	require.NoError(t, err)
	require.NotEqual(t, p.ImageURL, up.ImageURL)
	require.NoFileExists(t, first)

	second := filepath.Join(dir, "products", filepath.Base(up.ImageURL))
	require.NoError(t, e.admin.HardDeleteProduct(ctx, admin, p.ID))
	_, err = os.Stat(second)
	require.True(t, os.IsNotExist(err))

	_, err = e.admin.CreateProduct(ctx, admin, productInput("consoles"), &media.Image{
		Filename: "script.exe", Size: 4, Body: strings.NewReader("MZ.."),
	})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdmin_ImageURLMustBeStoredImage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, url := range []string{
		"/media/products/./no-image.jpg",
		"/media/products/no-image.jpg/",
		"/media/products/../../etc/passwd",
		"https://cdn.example.com/a.jpg",
	} {
		in := productInput("consoles")
		in.ImageURL = url
		_, err := e.admin.CreateProduct(ctx, admin, in, nil)
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve, url)
		require.Equal(t, "imageUrl", ve.Field)
	}

	// switching a product back to the placeholder never removes the shared file
	dir := filepath.Join(e.admin.Media.Dir, "products")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	placeholder := filepath.Join(dir, filepath.Base(media.Placeholder))
	require.NoError(t, os.WriteFile(placeholder, []byte("jpg"), 0o644))

	p, err := e.admin.CreateProduct(ctx, admin, productInput("consoles"), &media.Image{
		Filename: "front.jpg", Size: 4, Body: strings.NewReader("jpg!"),
	})
	require.NoError(t, err)
	in := productInput("consoles")
	in.ImageURL = media.Placeholder
	_, err = e.admin.UpdateProduct(ctx, admin, p.ID, in, nil)
	require.NoError(t, err)
	require.NoError(t, e.admin.HardDeleteProduct(ctx, admin, p.ID))
	require.FileExists(t, placeholder)
}

func TestAdmin_SharedImageSurvivesUntilLastProduct(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.admin.CreateProduct(ctx, admin, productInput("consoles"), &media.Image{
		Filename: "shared.png", Size: 4, Body: strings.NewReader("png!"),
	})
	require.NoError(t, err)
	file := filepath.Join(e.admin.Media.Dir, "products", filepath.Base(a.ImageURL))

	in := productInput("consoles")
	in.ImageURL = a.ImageURL
	b, err := e.admin.CreateProduct(ctx, admin, in, nil)
	require.NoError(t, err)
	require.Equal(t, a.ImageURL, b.ImageURL)

	// replacing a's image keeps the file b still shows
	_, err = e.admin.UpdateProduct(ctx, admin, a.ID, productInput("consoles"), &media.Image{
		Filename: "new.png", Size: 4, Body: strings.NewReader("png!"),
	})
	require.NoError(t, err)
	require.FileExists(t, file)

	require.NoError(t, e.admin.HardDeleteProduct(ctx, admin, b.ID))
	require.NoFileExists(t, file)
}

func TestAdmin_CategorySoftDeleteGuard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.ErrorIs(t, e.admin.SoftDeleteCategory(ctx, admin, "radios"), domain.ErrHasActiveChildren)

	for _, id := range []string{"radio-001", "radio-002"} {
		require.NoError(t, e.admin.SoftDeleteProduct(ctx, admin, id))
	}
	require.NoError(t, e.admin.SoftDeleteCategory(ctx, admin, "radios"))

	cats, err := e.catalog.ListCategories(ctx)
	require.NoError(t, err)
	for _, c := range cats {
		require.NotEqual(t, "radios", c.ID)
	}
	_, err = e.catalog.GetCategory(ctx, "radios")
	require.ErrorIs(t, err, domain.ErrNotFound)

	// deleted products still reference it
	require.ErrorIs(t, e.admin.HardDeleteCategory(ctx, admin, "radios"), domain.ErrHasChildren)
	for _, id := range []string{"radio-001", "radio-002"} {
		require.NoError(t, e.admin.HardDeleteProduct(ctx, admin, id))
	}
	require.NoError(t, e.admin.HardDeleteCategory(ctx, admin, "radios"))
	_, err = e.admin.GetCategory(ctx, admin, "radios")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdmin_CategoryNames(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.admin.CreateCategory(ctx, admin, services.CategoryInput{Name: "consoles"})
	require.ErrorIs(t, err, domain.ErrValidation)

	c, err := e.admin.CreateCategory(ctx, admin, services.CategoryInput{Name: "Games", Description: "Cartridges"})
	require.NoError(t, err)
	_, err = e.admin.UpdateCategory(ctx, admin, c.ID, services.CategoryInput{Name: "Radios"})
	require.ErrorIs(t, err, domain.ErrValidation)

	// a deleted category frees its name; restoring it while the name is taken fails
	require.NoError(t, e.admin.SoftDeleteCategory(ctx, admin, c.ID))
	_, err = e.admin.CreateCategory(ctx, admin, services.CategoryInput{Name: "games"})
	require.NoError(t, err)
	require.ErrorIs(t, e.admin.RestoreCategory(ctx, admin, c.ID), domain.ErrValidation)

	// restoring a live category is a no-op
	require.NoError(t, e.admin.RestoreCategory(ctx, admin, "consoles"))
}

func TestAdmin_RestoreProductNeedsLiveCategory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c, err := e.admin.CreateCategory(ctx, admin, services.CategoryInput{Name: "Games"})
	require.NoError(t, err)
	p, err := e.admin.CreateProduct(ctx, admin, productInput(c.ID), nil)
	require.NoError(t, err)
	require.NoError(t, e.admin.SoftDeleteProduct(ctx, admin, p.ID))
	require.NoError(t, e.admin.SoftDeleteCategory(ctx, admin, c.ID))

	require.ErrorIs(t, e.admin.RestoreProduct(ctx, admin, p.ID), domain.ErrValidation)
	require.NoError(t, e.admin.RestoreCategory(ctx, admin, c.ID))
	require.NoError(t, e.admin.RestoreProduct(ctx, admin, p.ID))
}

func TestAdmin_DashboardAndOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, alice, "gbc-001", 1)
	require.NoError(t, err)
	order, err := e.placeOrder(t, alice, "sid-a")
	require.NoError(t, err)
	require.NoError(t, e.admin.SoftDeleteProduct(ctx, admin, "pad-001"))

	d, err := e.admin.Dashboard(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, 3, d.Categories)
	require.Equal(t, 0, d.DeletedCategories)
	require.Equal(t, repos.ProductStats{Live: 5, LiveActive: 5, Deleted: 1, LowStock: 3, OutOfStock: 1}, d.Products)
	require.Equal(t, 1, d.PendingOrders)
	require.Len(t, d.LowStock, 3)

	require.ErrorIs(t, e.admin.UpdateOrderStatus(ctx, admin, order.ID, "Lost", ""), domain.ErrValidation)
	require.NoError(t, e.admin.UpdateOrderStatus(ctx, admin, order.ID, domain.OrderShipped, "1Z999"))
	got, err := e.admin.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderShipped, got.Status)
	require.Equal(t, "1Z999", got.TrackingNumber)
	require.NotEmpty(t, got.ShippedAt)
	require.Empty(t, got.DeliveredAt)

	list, err := e.admin.ListOrders(ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Alice Shopper", list[0].CustomerName)
}
