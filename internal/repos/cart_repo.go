package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type CartRepo struct{ db sqlx.ExtContext }

func NewCartRepo(db sqlx.ExtContext) *CartRepo { return &CartRepo{db: db} }

func (r *CartRepo) WithTx(tx *sqlx.Tx) *CartRepo { return &CartRepo{db: tx} }

// CartOf returns the user's cart header, or ErrNotFound before the first add.
func (r *CartRepo) CartOf(ctx context.Context, userID string) (domain.Cart, error) {
	var c struct {
		ID        string `db:"id"`
		UserID    string `db:"user_id"`
		UpdatedAt string `db:"updated_at"`
	}
	err := sqlx.GetContext(ctx, r.db, &c, `SELECT id, user_id, updated_at FROM carts WHERE user_id = ?`, userID)
	if err != nil {
		return domain.Cart{}, notFound(err, "cart of user", userID)
	}
	return domain.Cart{ID: c.ID, UserID: c.UserID, UpdatedAt: c.UpdatedAt}, nil
}

// EnsureCart returns the user's cart id, creating the cart on first use.
func (r *CartRepo) EnsureCart(ctx context.Context, userID string) (string, error) {
	ts := now()
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO carts(id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING
	`, uuid.NewString(), userID, ts, ts); err != nil {
		return "", MapErr(err)
	}
	var id string
	err := sqlx.GetContext(ctx, r.db, &id, `SELECT id FROM carts WHERE user_id = ?`, userID)
	return id, err
}

const cartLineCols = `
	  cl.id, cl.cart_id, cl.product_id, p.name AS product_name, p.price, cl.quantity, p.stock,
	  p.image_url, p.active AS product_active, p.lifecycle AS product_lifecycle, cl.added_at`

// Lines returns the cart's lines joined with the live product state, oldest first.
func (r *CartRepo) Lines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	out := []domain.CartLine{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
	  SELECT`+cartLineCols+`
	  FROM cart_lines cl JOIN products p ON p.id = cl.product_id
	  WHERE cl.cart_id = ?
	  ORDER BY cl.id
	`, cartID)
	return out, err
}

func (r *CartRepo) Line(ctx context.Context, cartID string, lineID int64) (domain.CartLine, error) {
	var l domain.CartLine
	err := sqlx.GetContext(ctx, r.db, &l, `
	  SELECT`+cartLineCols+`
	  FROM cart_lines cl JOIN products p ON p.id = cl.product_id
	  WHERE cl.cart_id = ? AND cl.id = ?
	`, cartID, lineID)
	if errors.Is(err, sql.ErrNoRows) {
		return l, domain.NotFoundf("cart line %d", lineID)
	}
	return l, err
}

// QuantityOf returns the quantity already held for productID, 0 when absent.
func (r *CartRepo) QuantityOf(ctx context.Context, cartID, productID string) (int, error) {
	var q int
	err := sqlx.GetContext(ctx, r.db, &q, `
	  SELECT COALESCE(SUM(quantity), 0) FROM cart_lines WHERE cart_id = ? AND product_id = ?
	`, cartID, productID)
	return q, err
}

// UpsertLine adds qty to the product's line, creating it when needed.
func (r *CartRepo) UpsertLine(ctx context.Context, cartID, productID string, qty int) (int64, error) {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_lines(cart_id, product_id, quantity, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cart_id, product_id) DO UPDATE
		SET quantity = cart_lines.quantity + excluded.quantity
	`, cartID, productID, qty, now()); err != nil {
		return 0, MapErr(err)
	}
	var id int64
	err := sqlx.GetContext(ctx, r.db, &id, `SELECT id FROM cart_lines WHERE cart_id = ? AND product_id = ?`, cartID, productID)
	return id, err
}

func (r *CartRepo) SetQuantity(ctx context.Context, cartID string, lineID int64, qty int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cart_lines SET quantity = ? WHERE cart_id = ? AND id = ?`, qty, cartID, lineID)
	if err != nil {
		return MapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("cart line %d", lineID)
	}
	return nil
}

// RemoveLine reports whether a line was removed.
func (r *CartRepo) RemoveLine(ctx context.Context, cartID string, lineID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = ? AND id = ?`, cartID, lineID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *CartRepo) Clear(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = ?`, cartID)
	return err
}

// Touch stamps the cart's updated_at.
func (r *CartRepo) Touch(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE carts SET updated_at = ? WHERE id = ?`, now(), cartID)
	return err
}
