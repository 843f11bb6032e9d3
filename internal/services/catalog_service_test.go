package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/services"
)

func names(ps []domain.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func TestCatalogService_ListProductsSortsAndFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	all, err := e.catalog.ListProducts(ctx, services.ProductFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{
		"Controller Extension Cable", "Game Boy Color", "NES Console",
		"Philco 1939 Tube Radio", "Super Nintendo Console", "Zenith Royal 500",
	}, names(all))

	byPrice, err := e.catalog.ListProducts(ctx, services.ProductFilter{Sort: "price_desc"})
	require.NoError(t, err)
	require.Equal(t, "Philco 1939 Tube Radio", byPrice[0].Name)
	require.Equal(t, "Controller Extension Cable", byPrice[len(byPrice)-1].Name)

	radios, err := e.catalog.ListProducts(ctx, services.ProductFilter{CategoryID: "radios", Sort: "name_desc"})
	require.NoError(t, err)
	require.Equal(t, []string{"Zenith Royal 500", "Philco 1939 Tube Radio"}, names(radios))

	// the term also matches the category name
	hits, err := e.catalog.ListProducts(ctx, services.ProductFilter{Term: "ACCESSOR"})
	require.NoError(t, err)
	require.Equal(t, []string{"Controller Extension Cable"}, names(hits))

	bogus, err := e.catalog.ListProducts(ctx, services.ProductFilter{Sort: "random"})
	require.NoError(t, err)
	require.Equal(t, names(all), names(bogus))
}

func TestCatalogService_HidesDeletedAndInactive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.admin.SoftDeleteProduct(ctx, admin, "gbc-001"))
	_, err := e.db.Exec(`UPDATE products SET active = 0 WHERE id = 'nes-001'`)
	require.NoError(t, err)

	ps, err := e.catalog.ListProducts(ctx, services.ProductFilter{CategoryID: "consoles"})
	require.NoError(t, err)
	require.Equal(t, []string{"Super Nintendo Console"}, names(ps))

	_, err = e.catalog.GetProduct(ctx, "gbc-001")
	require.ErrorIs(t, err, domain.ErrNotFound)

	cat, n, err := e.catalog.ProductCount(ctx, "consoles")
	require.NoError(t, err)
	require.Equal(t, "Consoles", cat.Name)
	require.Equal(t, 1, n)
}

func TestCatalogService_Search(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.catalog.Search(ctx, "   ")
	require.ErrorIs(t, err, domain.ErrValidation)

	hits, err := e.catalog.Search(ctx, "radio")
	require.NoError(t, err)
	require.Equal(t, []string{"Philco 1939 Tube Radio", "Zenith Royal 500"}, names(hits))

	// LIKE wildcards are literal
	hits, err = e.catalog.Search(ctx, "_")
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestCatalogService_Categories(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cats, err := e.catalog.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	require.Equal(t, "Accessories", cats[0].Name)
	require.Equal(t, 1, cats[0].ProductCount)

	nav, err := e.catalog.NavCategories(ctx, 2)
	require.NoError(t, err)
	require.Len(t, nav, 2)

	c, err := e.catalog.GetCategory(ctx, "consoles")
	require.NoError(t, err)
	require.Len(t, c.Products, 3)

	_, _, err = e.catalog.ProductsInCategory(ctx, "missing", "", "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInventoryService_CheckAvailability(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a, err := e.inventory.CheckAvailability(ctx, "radio-002")
	require.NoError(t, err)
	require.Equal(t, domain.StockIn, a.Status)
	require.Equal(t, 12, a.Stock)
	require.True(t, a.IsInStock)

	a, err = e.inventory.CheckAvailability(ctx, "radio-001")
	require.NoError(t, err)
	require.Equal(t, domain.StockLow, a.Status)

	a, err = e.inventory.CheckAvailability(ctx, "snes-001")
	require.NoError(t, err)
	require.Equal(t, domain.StockOut, a.Status)
	require.False(t, a.IsInStock)

	_, err = e.inventory.CheckAvailability(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
