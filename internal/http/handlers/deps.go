package handlers

import (
	"github.com/jmoiron/sqlx"

	"storefront/internal/config"
	"storefront/internal/media"
	"storefront/internal/metrics"
	"storefront/internal/repos"
	"storefront/internal/services"
)

// Deps is the wired object graph behind the HTTP surfaces.
type Deps struct {
	Metrics *metrics.Metrics
	Media   *media.Store
	Outbox  *repos.OutboxRepo

	Auth     *services.AuthService
	Catalog  *services.CatalogService
	Cart     *services.CartService
	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Admin    *services.AdminService
	Inv      *services.InventoryService

	AuthHandler      *AuthHandler
	CategoryHandler  *CategoryHandler
	ProductHandler   *ProductHandler
	InventoryHandler *InventoryHandler
	SearchHandler    *SearchHandler
	CartHandler      *CartHandler
	CheckoutHandler  *CheckoutHandler
	OrderHandler     *OrderHandler
	AdminHandler     *AdminHandler
	APIHandler       *APIHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, m *metrics.Metrics) *Deps {
	store := repos.NewStore(db)
	catRepo := repos.NewCategoryRepo(db)
	prodRepo := repos.NewProductRepo(db)
	invRepo := repos.NewInventoryRepo(db)
	cartRepo := repos.NewCartRepo(db)
	orderRepo := repos.NewOrderRepo(db)
	userRepo := repos.NewUserRepo(db)
	draftRepo := repos.NewDraftRepo(db)
	outbox := repos.NewOutboxRepo(db)
	mediaStore := media.NewStore(cfg.MediaDir)

	authSvc := services.NewAuthService(userRepo, draftRepo, cfg.SessionIdleTimeout)
	catalogSvc := services.NewCatalogService(catRepo, prodRepo)
	invSvc := services.NewInventoryService(prodRepo, invRepo)
	cartSvc := services.NewCartService(store, cartRepo, prodRepo)
	orderSvc := services.NewOrderService(orderRepo)
	checkoutSvc := &services.CheckoutService{
		Store:      store,
		Cart:       cartSvc,
		Users:      userRepo,
		Carts:      cartRepo,
		Inv:        invRepo,
		Orders:     orderRepo,
		Drafts:     draftRepo,
		Outbox:     outbox,
		Metrics:    m,
		Topic:      cfg.OrderEventsTopic,
		MaxRetries: cfg.CheckoutMaxRetries,
	}
	adminSvc := &services.AdminService{
		Store:  store,
		Cats:   catRepo,
		Prods:  prodRepo,
		Inv:    invRepo,
		Orders: orderRepo,
		Media:  mediaStore,
	}

	return &Deps{
		Metrics: m,
		Media:   mediaStore,
		Outbox:  outbox,

		Auth:     authSvc,
		Catalog:  catalogSvc,
		Cart:     cartSvc,
		Checkout: checkoutSvc,
		Orders:   orderSvc,
		Admin:    adminSvc,
		Inv:      invSvc,

		AuthHandler:      &AuthHandler{Auth: authSvc, SecureCookie: cfg.CookieSecure},
		CategoryHandler:  &CategoryHandler{Catalog: catalogSvc},
		ProductHandler:   &ProductHandler{Catalog: catalogSvc, Inv: invSvc},
		InventoryHandler: &InventoryHandler{Inv: invSvc},
		SearchHandler:    &SearchHandler{Catalog: catalogSvc},
		CartHandler:      &CartHandler{Cart: cartSvc},
		CheckoutHandler:  &CheckoutHandler{Checkout: checkoutSvc},
		OrderHandler:     &OrderHandler{Orders: orderSvc},
		AdminHandler:     &AdminHandler{Admin: adminSvc},
		APIHandler:       &APIHandler{Catalog: catalogSvc, Admin: adminSvc},
	}
}
