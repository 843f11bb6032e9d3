package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/events"
	applog "storefront/internal/log"
	"storefront/internal/metrics"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type CheckoutService struct {
	Store   *repos.Store
	Cart    *CartService
	Users   *repos.UserRepo
	Carts   *repos.CartRepo
	Inv     *repos.InventoryRepo
	Orders  *repos.OrderRepo
	Drafts  *repos.DraftRepo
	Outbox  *repos.OutboxRepo
	Metrics *metrics.Metrics

	// Topic names the stream order.placed events go to.
	Topic      string
	MaxRetries int
}

// CheckoutView is what the begin and review steps show the customer.
type CheckoutView struct {
	Cart           domain.Cart
	Shipping       domain.Shipping
	IdempotencyKey string
}

// Begin starts checkout for a non-empty cart, prefilling shipping from the profile.
func (s *CheckoutService) Begin(ctx context.Context, id domain.Identity) (CheckoutView, error) {
	if !id.Authenticated() {
		return CheckoutView{}, domain.ErrUnauthenticated
	}
	cart, err := s.Cart.GetCart(ctx, id)
	if err != nil {
		return CheckoutView{}, err
	}
	if cart.Empty() {
		return CheckoutView{}, domain.ErrEmptyCart
	}
	u, err := s.Users.ByID(ctx, id.UserID)
	if err != nil {
		return CheckoutView{}, err
	}
	return CheckoutView{
		Cart:     cart,
		Shipping: domain.Shipping{Address: u.Address, City: u.City, ZipCode: u.ZipCode, Phone: u.Phone},
	}, nil
}

// CleanShipping validates and trims the shipping form.
func CleanShipping(in domain.Shipping) (domain.Shipping, error) {
	var out domain.Shipping
	var ok bool
	if out.Address, ok = validate.Name(in.Address, 500); !ok {
		return out, domain.Invalid("address", "shipping address is required (max 500 characters)")
	}
	if out.City, ok = validate.Text(in.City, 100); !ok {
		return out, domain.Invalid("city", "city is too long")
	}
	if out.ZipCode, ok = validate.ZIP(in.ZipCode); !ok {
		return out, domain.Invalid("zipCode", "enter a valid postal code")
	}
	if out.Phone, ok = validate.Phone(in.Phone); !ok {
		return out, domain.Invalid("phone", "enter a valid phone number")
	}
	if out.Notes, ok = validate.Text(in.Notes, 1000); !ok {
		return out, domain.Invalid("notes", "notes are too long (max 1000 characters)")
	}
	return out, nil
}

// Review stores the shipping details for this session and mints the key the
// final submission must carry.
func (s *CheckoutService) Review(ctx context.Context, id domain.Identity, sid string, ship domain.Shipping) (CheckoutView, error) {
	if !id.Authenticated() {
		return CheckoutView{}, domain.ErrUnauthenticated
	}
	clean, err := CleanShipping(ship)
	if err != nil {
		return CheckoutView{}, err
	}
	cart, err := s.Cart.GetCart(ctx, id)
	if err != nil {
		return CheckoutView{}, err
	}
	if cart.Empty() {
		return CheckoutView{}, domain.ErrEmptyCart
	}
	key := uuid.NewString()
	if err := s.Drafts.Save(ctx, domain.CheckoutDraft{
		SessionID:      sid,
		UserID:         id.UserID,
		IdempotencyKey: key,
		Shipping:       clean,
	}); err != nil {
		return CheckoutView{}, err
	}
	return CheckoutView{Cart: cart, Shipping: clean, IdempotencyKey: key}, nil
}

// Complete turns the caller's cart into an order in one transaction. A key
// already used by this caller returns the order placed with it. Store
// conflicts are retried up to MaxRetries attempts.
func (s *CheckoutService) Complete(ctx context.Context, id domain.Identity, sid, key string) (domain.Order, error) {
	if !id.Authenticated() {
		return domain.Order{}, domain.ErrUnauthenticated
	}
	attempts := s.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var (
		order    domain.Order
		replayed bool
		err      error
	)
	for i := 0; i < attempts; i++ {
		order, replayed, err = s.complete(ctx, id, sid, key)
		if !errors.Is(err, domain.ErrConcurrencyConflict) || i == attempts-1 {
			break
		}
		s.Metrics.CheckoutRetry()
		applog.Logger().WithError(err).WithField("attempt", i+1).Warn("checkout.retry")
		select {
		case <-ctx.Done():
			return domain.Order{}, ctx.Err()
		case <-time.After(time.Duration(i+1) * 10 * time.Millisecond):
		}
	}

	switch {
	case err != nil:
		s.Metrics.CheckoutFail(failReason(err))
	case replayed:
		s.Metrics.CheckoutReplay()
	default:
		s.Metrics.CheckoutDone()
	}
	return order, err
}

func (s *CheckoutService) complete(ctx context.Context, id domain.Identity, sid, key string) (domain.Order, bool, error) {
	var (
		order    domain.Order
		replayed bool
	)
	err := s.Store.InTx(ctx, func(tx *sqlx.Tx) error {
		orders, drafts, carts := s.Orders.WithTx(tx), s.Drafts.WithTx(tx), s.Carts.WithTx(tx)
		inv, outbox := s.Inv.WithTx(tx), s.Outbox.WithTx(tx)

		if key != "" {
			prev, err := orders.ByIdempotencyKey(ctx, id.UserID, key)
			if err == nil {
				order, replayed = prev, true
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
		}

		draft, err := drafts.Get(ctx, sid, id.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("shipping", "shipping details are required; review your order first")
		}
		if err != nil {
			return err
		}
		if key == "" {
			key = draft.IdempotencyKey
		}

		cart, err := carts.CartOf(ctx, id.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrEmptyCart
		}
		if err != nil {
			return err
		}
		lines, err := carts.Lines(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}
		for _, l := range lines {
			if !l.ProductActive || l.ProductLifecycle.Deleted() {
				return domain.NotFoundf("product %q is no longer available", l.ProductName)
			}
			if l.Stock < l.Quantity {
				return &domain.StockError{ProductID: l.ProductID, ProductName: l.ProductName, Requested: l.Quantity, Available: l.Stock}
			}
		}

		order = domain.Order{
			ID:             uuid.NewString(),
			UserID:         id.UserID,
			CustomerName:   id.Name,
			OrderDate:      time.Now().UTC().Format(time.RFC3339),
			Status:         domain.OrderPending,
			IdempotencyKey: key,
			Shipping:       draft.Shipping,
			Total:          decimal.Zero,
		}
		for _, l := range lines {
			ol := domain.OrderLine{
				OrderID:     order.ID,
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Price:       l.Price,
				Quantity:    l.Quantity,
			}
			order.Lines = append(order.Lines, ol)
			order.Total = order.Total.Add(ol.Subtotal())
		}
		if err := orders.Create(ctx, order); err != nil {
			return err
		}
		for _, l := range lines {
			if err := inv.Decrement(ctx, l.ProductID, l.Quantity); err != nil {
				if errors.Is(err, domain.ErrInsufficientStock) {
					return &domain.StockError{ProductID: l.ProductID, ProductName: l.ProductName, Requested: l.Quantity, Available: l.Stock}
				}
				return err
			}
		}
		if err := carts.Clear(ctx, cart.ID); err != nil {
			return err
		}
		if err := carts.Touch(ctx, cart.ID); err != nil {
			return err
		}
		if err := drafts.Delete(ctx, sid); err != nil {
			return err
		}
		rec, err := events.NewOrderPlaced(order, s.Topic)
		if err != nil {
			return err
		}
		return outbox.Append(ctx, rec)
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	return order, replayed, nil
}

func failReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}
