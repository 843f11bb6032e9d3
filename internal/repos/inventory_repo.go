package repos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// InventoryRepo owns the stock column of products.
type InventoryRepo struct{ db sqlx.ExtContext }

func NewInventoryRepo(db sqlx.ExtContext) *InventoryRepo { return &InventoryRepo{db: db} }

func (r *InventoryRepo) WithTx(tx *sqlx.Tx) *InventoryRepo { return &InventoryRepo{db: tx} }

// StockRow is used by the admin dashboard's low-stock table.
type StockRow struct {
	ProductID string `db:"id"`
	Name      string `db:"name"`
	Stock     int    `db:"stock"`
}

// Qty returns current stock for a live product.
func (r *InventoryRepo) Qty(ctx context.Context, productID string) (int, error) {
	var qty int
	err := sqlx.GetContext(ctx, r.db, &qty, `SELECT stock FROM products WHERE id = ? AND lifecycle = 'ACTIVE'`, productID)
	return qty, notFound(err, "product", productID)
}

// Decrement subtracts by units only if enough stock exists and bumps the
// product version. No row changes means the stock could not cover it.
func (r *InventoryRepo) Decrement(ctx context.Context, productID string, by int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, version = version + 1, updated_at = ?
		WHERE id = ? AND lifecycle = 'ACTIVE' AND stock >= ?
	`, by, now(), productID, by)
	if err != nil {
		return MapErr(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("decrement %s by %d: %w", productID, by, domain.ErrInsufficientStock)
	}
	return nil
}

// LowStock lists live products with 1..LowStockThreshold units left.
func (r *InventoryRepo) LowStock(ctx context.Context, limit int) ([]StockRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows := []StockRow{}
	err := sqlx.SelectContext(ctx, r.db, &rows, `
		SELECT id, name, stock FROM products
		WHERE lifecycle = 'ACTIVE' AND stock BETWEEN 1 AND ?
		ORDER BY stock, name
		LIMIT ?
	`, domain.LowStockThreshold, limit)
	return rows, err
}
