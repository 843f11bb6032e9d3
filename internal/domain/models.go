package domain

import "github.com/shopspring/decimal"

// Lifecycle tags catalog rows instead of a per-entity deleted flag.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "ACTIVE"
	LifecycleDeleted Lifecycle = "DELETED"
)

func (l Lifecycle) Deleted() bool { return l == LifecycleDeleted }

type Category struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	Lifecycle    Lifecycle `db:"lifecycle" json:"lifecycle"`
	CreatedAt    string    `db:"created_at" json:"createdAt"`
	UpdatedAt    string    `db:"updated_at" json:"updatedAt,omitempty"`
	ProductCount int       `db:"product_count" json:"productCount"`
	Products     []Product `db:"-" json:"products,omitempty"`
}

type Product struct {
	ID           string          `db:"id" json:"id"`
	CategoryID   string          `db:"category_id" json:"categoryId"`
	CategoryName string          `db:"category_name" json:"categoryName,omitempty"`
	Name         string          `db:"name" json:"name"`
	Description  string          `db:"description" json:"description"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Stock        int             `db:"stock" json:"stock"`
	ImageURL     string          `db:"image_url" json:"imageUrl"`
	Active       bool            `db:"active" json:"isActive"`
	Lifecycle    Lifecycle       `db:"lifecycle" json:"lifecycle"`
	Version      int             `db:"version" json:"version"`
	CreatedAt    string          `db:"created_at" json:"createdAt"`
	UpdatedAt    string          `db:"updated_at" json:"updatedAt,omitempty"`
}

// Purchasable reports whether customers may put the product in a cart.
func (p Product) Purchasable() bool { return p.Active && !p.Lifecycle.Deleted() }

// Stock levels reported by the availability endpoint.
const (
	StockIn  = "IN_STOCK"
	StockLow = "LOW_STOCK"
	StockOut = "OUT_OF_STOCK"

	LowStockThreshold = 10
)

type Availability struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Stock       int    `json:"stock"`
	IsInStock   bool   `json:"isInStock"`
	Status      string `json:"status"`
}

func StockStatus(qty int) string {
	switch {
	case qty <= 0:
		return StockOut
	case qty <= LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}
