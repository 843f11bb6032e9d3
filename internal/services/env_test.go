package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/media"
	"storefront/internal/repos"
	"storefront/internal/services"
)

var (
	alice = domain.Identity{UserID: "u-alice", Name: "Alice Shopper", Email: "alice@storefront.test"}
	bob   = domain.Identity{UserID: "u-bob", Name: "Bob Shopper", Email: "bob@storefront.test"}
	admin = domain.Identity{UserID: "u-admin", Name: "Store Admin", Email: "admin@storefront.test", IsAdmin: true}
)

type env struct {
	db     *sqlx.DB
	prods  *repos.ProductRepo
	inv    *repos.InventoryRepo
	orders *repos.OrderRepo
	outbox *repos.OutboxRepo

	auth      *services.AuthService
	catalog   *services.CatalogService
	inventory *services.InventoryService
	cart      *services.CartService
	checkout  *services.CheckoutService
	history   *services.OrderService
	admin     *services.AdminService
}

// newEnv wires every service over a fresh seeded in-memory store.
func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repos.NewStore(db)
	cats := repos.NewCategoryRepo(db)
	prods := repos.NewProductRepo(db)
	inv := repos.NewInventoryRepo(db)
	carts := repos.NewCartRepo(db)
	orders := repos.NewOrderRepo(db)
	drafts := repos.NewDraftRepo(db)
	outbox := repos.NewOutboxRepo(db)
	users := repos.NewUserRepo(db)

	cart := services.NewCartService(store, carts, prods)
	return &env{
		db: db, prods: prods, inv: inv, orders: orders, outbox: outbox,
		auth:      services.NewAuthService(users, drafts, 30*time.Minute),
		catalog:   services.NewCatalogService(cats, prods),
		inventory: services.NewInventoryService(prods, inv),
		cart:      cart,
		checkout: &services.CheckoutService{
			Store: store, Cart: cart, Users: users, Carts: carts, Inv: inv,
			Orders: orders, Drafts: drafts, Outbox: outbox,
			Topic: "orders.placed", MaxRetries: 3,
		},
		history: services.NewOrderService(orders),
		admin: &services.AdminService{
			Store: store, Cats: cats, Prods: prods, Inv: inv, Orders: orders,
			Media: media.NewStore(t.TempDir()),
		},
	}
}

func (e *env) stock(t *testing.T, productID string) int {
	t.Helper()
	qty, err := e.inv.Qty(context.Background(), productID)
	require.NoError(t, err)
	return qty
}

func (e *env) setStock(t *testing.T, productID string, qty int) {
	t.Helper()
	_, err := e.db.Exec(`UPDATE products SET stock = ? WHERE id = ?`, qty, productID)
	require.NoError(t, err)
}

// placeOrder runs review and complete for a caller whose cart is filled.
func (e *env) placeOrder(t *testing.T, id domain.Identity, sid string) (domain.Order, error) {
	t.Helper()
	ctx := context.Background()
	view, err := e.checkout.Review(ctx, id, sid, domain.Shipping{Address: "1 Main Street", City: "College Park", ZipCode: "20742"})
	require.NoError(t, err)
	return e.checkout.Complete(ctx, id, sid, view.IdempotencyKey)
}
