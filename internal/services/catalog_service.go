package services

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type CatalogService struct {
	Cats  *repos.CategoryRepo
	Prods *repos.ProductRepo
}

func NewCatalogService(cats *repos.CategoryRepo, prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Cats: cats, Prods: prods}
}

// ProductFilter narrows the customer product listing.
type ProductFilter struct {
	CategoryID string
	Term       string
	Sort       string
}

// ListProducts returns live, active products. Unknown sort keys fall back to name order.
func (s *CatalogService) ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	sort := f.Sort
	if !repos.ValidSort(sort) {
		sort = repos.SortNameAsc
	}
	return s.Prods.List(ctx, repos.ProductQuery{
		CategoryID: f.CategoryID,
		Term:       f.Term,
		Sort:       sort,
		Scope:      repos.LiveOnly,
		ActiveOnly: true,
	})
}

// ProductsInCategory lists a live category's products.
func (s *CatalogService) ProductsInCategory(ctx context.Context, categoryID, term, sort string) (domain.Category, []domain.Product, error) {
	cat, err := s.Cats.Get(ctx, categoryID, repos.LiveOnly)
	if err != nil {
		return domain.Category{}, nil, err
	}
	prods, err := s.ListProducts(ctx, ProductFilter{CategoryID: categoryID, Term: term, Sort: sort})
	return cat, prods, err
}

func (s *CatalogService) Search(ctx context.Context, term string) ([]domain.Product, error) {
	q, ok := validate.Q(term)
	if !ok {
		return nil, domain.Invalid("searchTerm", "search term is required")
	}
	return s.ListProducts(ctx, ProductFilter{Term: q})
}

// GetProduct returns a live product, active or not.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.Prods.Get(ctx, id, repos.LiveOnly)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.Cats.List(ctx, repos.LiveOnly)
}

// NavCategories returns the first n live categories for the navigation bar.
func (s *CatalogService) NavCategories(ctx context.Context, n int) ([]domain.Category, error) {
	cats, err := s.Cats.List(ctx, repos.LiveOnly)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(cats) > n {
		cats = cats[:n]
	}
	return cats, nil
}

// GetCategory returns a live category with its live, active products.
func (s *CatalogService) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	cat, prods, err := s.ProductsInCategory(ctx, id, "", "")
	if err != nil {
		return domain.Category{}, err
	}
	cat.Products = prods
	return cat, nil
}

// ProductCount counts the live, active products of a live category.
func (s *CatalogService) ProductCount(ctx context.Context, categoryID string) (domain.Category, int, error) {
	cat, err := s.Cats.Get(ctx, categoryID, repos.LiveOnly)
	if err != nil {
		return domain.Category{}, 0, err
	}
	return cat, cat.ProductCount, nil
}
