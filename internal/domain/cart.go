package domain

import "github.com/shopspring/decimal"

// CartLine is a cart row joined with the live state of its product.
type CartLine struct {
	ID               int64           `db:"id" json:"id"`
	CartID           string          `db:"cart_id" json:"cartId"`
	ProductID        string          `db:"product_id" json:"productId"`
	ProductName      string          `db:"product_name" json:"productName"`
	Price            decimal.Decimal `db:"price" json:"price"`
	Quantity         int             `db:"quantity" json:"quantity"`
	Stock            int             `db:"stock" json:"stock"`
	ImageURL         string          `db:"image_url" json:"imageUrl"`
	ProductActive    bool            `db:"product_active" json:"-"`
	ProductLifecycle Lifecycle       `db:"product_lifecycle" json:"-"`
	AddedAt          string          `db:"added_at" json:"addedAt"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	ID        string
	UserID    string
	UpdatedAt string
	Lines     []CartLine
}

func (c Cart) Empty() bool { return len(c.Lines) == 0 }

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Line returns the cart line with the given id.
func (c Cart) Line(id int64) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return CartLine{}, false
}
