package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestCheckout_BeginNeedsIdentityAndItems(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.checkout.Begin(ctx, domain.Identity{})
	require.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = e.checkout.Begin(ctx, alice)
	require.ErrorIs(t, err, domain.ErrEmptyCart)

	_, err = e.cart.AddItem(ctx, alice, "gbc-001", 1)
	require.NoError(t, err)
	view, err := e.checkout.Begin(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "1 Main Street", view.Shipping.Address)
	require.Equal(t, "20742", view.Shipping.ZipCode)
	require.Len(t, view.Cart.Lines, 1)
}

func TestCheckout_ReviewValidatesShipping(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, alice, "gbc-001", 1)
	require.NoError(t, err)

	_, err = e.checkout.Review(ctx, alice, "sid-a", domain.Shipping{Address: "   "})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = e.checkout.Review(ctx, alice, "sid-a", domain.Shipping{Address: "1 Main", Phone: "call me"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "phone", ve.Field)

	view, err := e.checkout.Review(ctx, alice, "sid-a", domain.Shipping{Address: " 1 Main ", Phone: "+1 301-555-0100"})
	require.NoError(t, err)
	require.Equal(t, "1 Main", view.Shipping.Address)
	require.NotEmpty(t, view.IdempotencyKey)
}

func TestCheckout_CompleteWithoutReviewFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, alice, "gbc-001", 1)
	require.NoError(t, err)
	_, err = e.checkout.Complete(ctx, alice, "sid-a", "")
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Equal(t, 8, e.stock(t, "gbc-001"))
}

// Product A (stock 5) qty 3 in the cart, product B (stock 0) absent.
func TestCheckout_CompletePlacesOrderAndDebitsStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.Equal(t, 0, e.stock(t, "snes-001"))

	_, err := e.cart.AddItem(ctx, alice, "nes-001", 3)
	require.NoError(t, err)

	order, err := e.placeOrder(t, alice, "sid-a")
	require.NoError(t, err)
	require.Equal(t, domain.OrderPending, order.Status)
	require.Len(t, order.Lines, 1)
	require.Equal(t, "nes-001", order.Lines[0].ProductID)
	require.Equal(t, 3, order.Lines[0].Quantity)
	require.True(t, decimal.RequireFromString("597").Equal(order.Total), order.Total.String())

	require.Equal(t, 2, e.stock(t, "nes-001"))
	require.Equal(t, 0, e.stock(t, "snes-001"))

	cart, err := e.cart.GetCart(ctx, alice)
	require.NoError(t, err)
	require.True(t, cart.Empty())

	hist, err := e.history.History(ctx, alice)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, order.ID, hist[0].ID)

	pending, err := e.outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "orders.placed", pending[0].Topic)
	require.Equal(t, order.ID, pending[0].Key)
}

func TestCheckout_OrderTotalEqualsLines(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, add := range []struct {
		id  string
		qty int
	}{{"gbc-001", 2}, {"radio-002", 3}, {"pad-001", 7}} {
		_, err := e.cart.AddItem(ctx, alice, add.id, add.qty)
		require.NoError(t, err)
	}
	order, err := e.placeOrder(t, alice, "sid-a")
	require.NoError(t, err)

	stored, err := e.history.GetOrder(ctx, alice, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 3)
	require.True(t, stored.LinesTotal().Equal(stored.Total), "%s != %s", stored.LinesTotal(), stored.Total)
	require.True(t, decimal.RequireFromString("596.91").Equal(stored.Total), stored.Total.String())
}

func TestCheckout_CompleteIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, alice, "gbc-001", 2)
	require.NoError(t, err)
	view, err := e.checkout.Review(ctx, alice, "sid-a", domain.Shipping{Address: "1 Main Street"})
	require.NoError(t, err)

	first, err := e.checkout.Complete(ctx, alice, "sid-a", view.IdempotencyKey)
	require.NoError(t, err)
	again, err := e.checkout.Complete(ctx, alice, "sid-a", view.IdempotencyKey)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)

	var n int
	require.NoError(t, e.db.Get(&n, `SELECT COUNT(*) FROM orders`))
	require.Equal(t, 1, n)
	require.Equal(t, 6, e.stock(t, "gbc-001"))

	// someone else's key does not reveal alice's order
	_, err = e.cart.AddItem(ctx, bob, "gbc-001", 1)
	require.NoError(t, err)
	_, err = e.checkout.Complete(ctx, bob, "sid-b", view.IdempotencyKey)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckout_InsufficientStockRollsBack(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, alice, "gbc-001", 1)
	require.NoError(t, err)
	_, err = e.cart.AddItem(ctx, alice, "radio-001", 2)
	require.NoError(t, err)
	e.setStock(t, "radio-001", 1)

	_, err = e.placeOrder(t, alice, "sid-a")
	var se *domain.StockError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "Philco 1939 Tube Radio", se.ProductName)

	require.Equal(t, 8, e.stock(t, "gbc-001"))
	require.Equal(t, 1, e.stock(t, "radio-001"))
	cart, err := e.cart.GetCart(ctx, alice)
	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	var n int
	require.NoError(t, e.db.Get(&n, `SELECT COUNT(*) FROM orders`))
	require.Zero(t, n)
}

func TestCheckout_DeletedProductFailsComplete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, alice, "radio-002", 1)
	require.NoError(t, err)
	require.NoError(t, e.admin.SoftDeleteProduct(ctx, admin, "radio-002"))

	_, err = e.placeOrder(t, alice, "sid-a")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Contains(t, err.Error(), "Zenith Royal 500")
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.setStock(t, "radio-001", 1)

	keys := map[string]string{}
	for _, who := range []struct {
		id  domain.Identity
		sid string
	}{{alice, "sid-a"}, {bob, "sid-b"}} {
		_, err := e.cart.AddItem(ctx, who.id, "radio-001", 1)
		require.NoError(t, err)
		view, err := e.checkout.Review(ctx, who.id, who.sid, domain.Shipping{Address: "1 Main Street"})
		require.NoError(t, err)
		keys[who.sid] = view.IdempotencyKey
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, who := range []struct {
		id  domain.Identity
		sid string
	}{{alice, "sid-a"}, {bob, "sid-b"}} {
		wg.Add(1)
		go func(i int, id domain.Identity, sid string) {
			defer wg.Done()
			_, errs[i] = e.checkout.Complete(ctx, id, sid, keys[sid])
		}(i, who.id, who.sid)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, short)
	require.Equal(t, 0, e.stock(t, "radio-001"))
}

func TestCheckout_StockNeverNegative(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// repeatedly buy 1 unit from a product with 2 in stock
	for i := 0; i < 4; i++ {
		_, err := e.cart.AddItem(ctx, alice, "radio-001", 1)
		if err != nil {
			require.ErrorIs(t, err, domain.ErrInsufficientStock)
			continue
		}
		_, err = e.placeOrder(t, alice, "sid-a")
		require.NoError(t, err)
		require.GreaterOrEqual(t, e.stock(t, "radio-001"), 0)
	}
	require.Equal(t, 0, e.stock(t, "radio-001"))

	err := e.inv.Decrement(ctx, "radio-001", 1)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Equal(t, 0, e.stock(t, "radio-001"))
}

func TestOrderService_OtherCustomersOrdersAreHidden(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.cart.AddItem(ctx, alice, "gbc-001", 1)
	require.NoError(t, err)
	order, err := e.placeOrder(t, alice, "sid-a")
	require.NoError(t, err)

	_, err = e.history.GetOrder(ctx, bob, order.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	got, err := e.history.GetOrder(ctx, admin, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)

	_, err = e.history.History(ctx, domain.Identity{})
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
}
