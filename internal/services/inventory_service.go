package services

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

type InventoryService struct {
	Prods *repos.ProductRepo
	Inv   *repos.InventoryRepo
}

func NewInventoryService(prods *repos.ProductRepo, inv *repos.InventoryRepo) *InventoryService {
	return &InventoryService{Prods: prods, Inv: inv}
}

// CheckAvailability converts stock into IN_STOCK / LOW_STOCK / OUT_OF_STOCK.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID string) (domain.Availability, error) {
	p, err := s.Prods.Get(ctx, productID, repos.LiveOnly)
	if err != nil {
		return domain.Availability{}, err
	}
	return domain.Availability{
		ProductID:   p.ID,
		ProductName: p.Name,
		Stock:       p.Stock,
		IsInStock:   p.Stock > 0,
		Status:      domain.StockStatus(p.Stock),
	}, nil
}

// LowStock lists live products running out, fewest units first.
func (s *InventoryService) LowStock(ctx context.Context, limit int) ([]repos.StockRow, error) {
	return s.Inv.LowStock(ctx, limit)
}
