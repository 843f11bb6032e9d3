package services

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/repos"
	"storefront/internal/validate"
)

type CartService struct {
	Store *repos.Store
	Carts *repos.CartRepo
	Prods *repos.ProductRepo
}

func NewCartService(store *repos.Store, carts *repos.CartRepo, prods *repos.ProductRepo) *CartService {
	return &CartService{Store: store, Carts: carts, Prods: prods}
}

// LineUpdate is the result of a quantity change.
type LineUpdate struct {
	Line      domain.CartLine
	Subtotal  decimal.Decimal
	CartTotal decimal.Decimal
	ItemCount int
}

// AddItem puts qty units of a product into the caller's cart, merging with an
// existing line for the same product.
func (s *CartService) AddItem(ctx context.Context, id domain.Identity, productID string, qty int) (domain.CartLine, error) {
	if !id.Authenticated() {
		return domain.CartLine{}, domain.ErrUnauthenticated
	}
	if qty < 1 || qty > validate.MaxQty {
		return domain.CartLine{}, domain.ErrInvalidQuantity
	}

	var line domain.CartLine
	err := s.Store.InTx(ctx, func(tx *sqlx.Tx) error {
		carts, prods := s.Carts.WithTx(tx), s.Prods.WithTx(tx)

		p, err := prods.Get(ctx, productID, repos.LiveOnly)
		if err != nil {
			return err
		}
		if !p.Purchasable() {
			return domain.NotFoundf("product %q", productID)
		}
		cartID, err := carts.EnsureCart(ctx, id.UserID)
		if err != nil {
			return err
		}
		have, err := carts.QuantityOf(ctx, cartID, productID)
		if err != nil {
			return err
		}
		want := have + qty
		if want > p.Stock {
			return &domain.StockError{ProductID: p.ID, ProductName: p.Name, Requested: want, Available: p.Stock}
		}
		if want > validate.MaxQty {
			return domain.ErrInvalidQuantity
		}
		lineID, err := carts.UpsertLine(ctx, cartID, productID, qty)
		if err != nil {
			return err
		}
		if err := carts.Touch(ctx, cartID); err != nil {
			return err
		}
		line, err = carts.Line(ctx, cartID, lineID)
		return err
	})
	return line, err
}

// UpdateQuantity sets a line of the caller's cart to qty.
func (s *CartService) UpdateQuantity(ctx context.Context, id domain.Identity, lineID int64, qty int) (LineUpdate, error) {
	if !id.Authenticated() {
		return LineUpdate{}, domain.ErrUnauthenticated
	}
	if qty < 1 || qty > validate.MaxQty {
		return LineUpdate{}, domain.ErrInvalidQuantity
	}

	var out LineUpdate
	err := s.Store.InTx(ctx, func(tx *sqlx.Tx) error {
		carts := s.Carts.WithTx(tx)
		cart, err := carts.CartOf(ctx, id.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFoundf("cart line %d", lineID)
		}
		if err != nil {
			return err
		}
		line, err := carts.Line(ctx, cart.ID, lineID)
		if err != nil {
			return err
		}
		if !line.ProductActive || line.ProductLifecycle.Deleted() {
			return domain.NotFoundf("product %q is no longer available", line.ProductName)
		}
		if qty > line.Stock {
			return &domain.StockError{ProductID: line.ProductID, ProductName: line.ProductName, Requested: qty, Available: line.Stock}
		}
		if err := carts.SetQuantity(ctx, cart.ID, lineID, qty); err != nil {
			return err
		}
		if err := carts.Touch(ctx, cart.ID); err != nil {
			return err
		}
		lines, err := carts.Lines(ctx, cart.ID)
		if err != nil {
			return err
		}
		cart.Lines = lines
		out.Line, _ = cart.Line(lineID)
		out.Subtotal = out.Line.Subtotal()
		out.CartTotal = cart.Total()
		out.ItemCount = cart.ItemCount()
		return nil
	})
	return out, err
}

// RemoveItem drops a line from the caller's cart. Unknown lines are ignored.
func (s *CartService) RemoveItem(ctx context.Context, id domain.Identity, lineID int64) error {
	if !id.Authenticated() {
		return domain.ErrUnauthenticated
	}
	cart, err := s.Carts.CartOf(ctx, id.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	removed, err := s.Carts.RemoveLine(ctx, cart.ID, lineID)
	if err != nil || !removed {
		return err
	}
	return s.Carts.Touch(ctx, cart.ID)
}

// Clear empties the caller's cart; the cart itself stays.
func (s *CartService) Clear(ctx context.Context, id domain.Identity) error {
	if !id.Authenticated() {
		return domain.ErrUnauthenticated
	}
	cart, err := s.Carts.CartOf(ctx, id.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.Carts.Clear(ctx, cart.ID); err != nil {
		return err
	}
	return s.Carts.Touch(ctx, cart.ID)
}

// GetCart returns the caller's cart with live prices. A user who never added
// anything gets an empty cart.
func (s *CartService) GetCart(ctx context.Context, id domain.Identity) (domain.Cart, error) {
	if !id.Authenticated() {
		return domain.Cart{}, domain.ErrUnauthenticated
	}
	cart, err := s.Carts.CartOf(ctx, id.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Cart{UserID: id.UserID, Lines: []domain.CartLine{}}, nil
	}
	if err != nil {
		return domain.Cart{}, err
	}
	cart.Lines, err = s.Carts.Lines(ctx, cart.ID)
	return cart, err
}

// ItemCount is the number of units in the caller's cart, 0 for anonymous callers.
func (s *CartService) ItemCount(ctx context.Context, id domain.Identity) (int, error) {
	if !id.Authenticated() {
		return 0, nil
	}
	cart, err := s.GetCart(ctx, id)
	if err != nil {
		return 0, err
	}
	return cart.ItemCount(), nil
}
