package domain

import "github.com/shopspring/decimal"

// Order statuses. Transitions are not enforced; admins may set any known status.
const (
	OrderPending   = "Pending"
	OrderShipped   = "Shipped"
	OrderDelivered = "Delivered"
	OrderCancelled = "Cancelled"
)

func KnownOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type Shipping struct {
	Address string `db:"shipping_address" json:"address"`
	City    string `db:"shipping_city" json:"city"`
	ZipCode string `db:"shipping_zip" json:"zipCode"`
	Phone   string `db:"shipping_phone" json:"phone"`
	Notes   string `db:"notes" json:"notes"`
}

type Order struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"userId"`
	CustomerName   string          `db:"customer_name" json:"customerName,omitempty"`
	OrderDate      string          `db:"order_date" json:"orderDate"`
	Total          decimal.Decimal `db:"total" json:"total"`
	Status         string          `db:"status" json:"status"`
	TrackingNumber string          `db:"tracking_number" json:"trackingNumber,omitempty"`
	ShippedAt      string          `db:"shipped_at" json:"shippedAt,omitempty"`
	DeliveredAt    string          `db:"delivered_at" json:"deliveredAt,omitempty"`
	IdempotencyKey string          `db:"idempotency_key" json:"-"`
	Shipping
	Lines []OrderLine `db:"-" json:"lines,omitempty"`
}

// OrderLine is a snapshot of a cart line taken when the order was placed.
type OrderLine struct {
	OrderID     string          `db:"order_id" json:"orderId"`
	ProductID   string          `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int             `db:"quantity" json:"quantity"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LinesTotal sums price x quantity over the order's own lines.
func (o Order) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
