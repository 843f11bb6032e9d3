package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type OrderRepo struct{ db sqlx.ExtContext }

func NewOrderRepo(db sqlx.ExtContext) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) WithTx(tx *sqlx.Tx) *OrderRepo { return &OrderRepo{db: tx} }

const orderCols = `
    id, user_id, customer_name, order_date, total, status,
    shipping_address, shipping_city, shipping_zip, shipping_phone, notes,
    tracking_number, shipped_at, delivered_at, idempotency_key`

// Create inserts the order header and its lines.
func (r *OrderRepo) Create(ctx context.Context, o domain.Order) error {
	if _, err := r.db.ExecContext(ctx, `
	  INSERT INTO orders
	    (id, user_id, customer_name, order_date, total, status,
	     shipping_address, shipping_city, shipping_zip, shipping_phone, notes, idempotency_key)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.UserID, o.CustomerName, o.OrderDate, o.Total.StringFixed(2), o.Status,
		o.Address, o.City, o.ZipCode, o.Phone, o.Notes, o.IdempotencyKey); err != nil {
		return MapErr(err)
	}
	for _, l := range o.Lines {
		if _, err := r.db.ExecContext(ctx, `
		  INSERT INTO order_lines(order_id, product_id, product_name, price, quantity)
		  VALUES (?, ?, ?, ?, ?)
		`, o.ID, l.ProductID, l.ProductName, l.Price.StringFixed(2), l.Quantity); err != nil {
			return MapErr(err)
		}
	}
	return nil
}

// ByIdempotencyKey finds the order a user already placed with key.
func (r *OrderRepo) ByIdempotencyKey(ctx context.Context, userID, key string) (domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, r.db, &o, `
		SELECT`+orderCols+` FROM orders WHERE idempotency_key = ? AND user_id = ?
	`, key, userID)
	if err != nil {
		return o, notFound(err, "order with key", key)
	}
	return o, r.loadLines(ctx, &o)
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	if err := sqlx.GetContext(ctx, r.db, &o, `SELECT`+orderCols+` FROM orders WHERE id = ?`, id); err != nil {
		return o, notFound(err, "order", id)
	}
	return o, r.loadLines(ctx, &o)
}

func (r *OrderRepo) loadLines(ctx context.Context, o *domain.Order) error {
	o.Lines = []domain.OrderLine{}
	return sqlx.SelectContext(ctx, r.db, &o.Lines, `
		SELECT order_id, product_id, product_name, price, quantity
		FROM order_lines
		WHERE order_id = ?
		ORDER BY product_name
	`, o.ID)
}

// ListByUser returns a user's orders, newest first, without lines.
func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	out := []domain.Order{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT`+orderCols+`
		FROM orders
		WHERE user_id = ?
		ORDER BY order_date DESC, rowid DESC
	`, userID)
	return out, err
}

func (r *OrderRepo) ListLatest(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	out := []domain.Order{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT`+orderCols+`
		FROM orders
		ORDER BY order_date DESC, rowid DESC
		LIMIT ?
	`, limit)
	return out, err
}

// UpdateStatus sets the status and tracking number. Empty timestamps leave
// the stored ones untouched.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id, status, tracking, shippedAt, deliveredAt string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
		  status = ?,
		  tracking_number = ?,
		  shipped_at = CASE WHEN ? <> '' THEN ? ELSE shipped_at END,
		  delivered_at = CASE WHEN ? <> '' THEN ? ELSE delivered_at END
		WHERE id = ?
	`, status, tracking, shippedAt, shippedAt, deliveredAt, deliveredAt, id)
	if err != nil {
		return MapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("order %q", id)
	}
	return nil
}

func (r *OrderRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM orders WHERE status = ?`, status)
	return n, err
}
