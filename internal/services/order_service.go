package services

import (
	"context"

	"storefront/internal/domain"
	"storefront/internal/repos"
)

type OrderService struct {
	Orders *repos.OrderRepo
}

func NewOrderService(orders *repos.OrderRepo) *OrderService {
	return &OrderService{Orders: orders}
}

// GetOrder returns one of the caller's orders with its lines. Orders of other
// customers are reported as missing; admins see every order.
func (s *OrderService) GetOrder(ctx context.Context, id domain.Identity, orderID string) (domain.Order, error) {
	if !id.Authenticated() {
		return domain.Order{}, domain.ErrUnauthenticated
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != id.UserID && !id.IsAdmin {
		return domain.Order{}, domain.NotFoundf("order %q", orderID)
	}
	return o, nil
}

// History lists the caller's orders, newest first.
func (s *OrderService) History(ctx context.Context, id domain.Identity) ([]domain.Order, error) {
	if !id.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	return s.Orders.ListByUser(ctx, id.UserID)
}
