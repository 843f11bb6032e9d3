package repos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type ProductRepo struct{ db sqlx.ExtContext }

func NewProductRepo(db sqlx.ExtContext) *ProductRepo { return &ProductRepo{db: db} }

func (r *ProductRepo) WithTx(tx *sqlx.Tx) *ProductRepo { return &ProductRepo{db: tx} }

const productCols = `
    p.id, p.category_id, COALESCE(c.name,'') AS category_name, p.name, p.description,
    p.price, p.stock, p.image_url, p.active, p.lifecycle, p.version, p.created_at, p.updated_at`

// Sort keys accepted by List.
const (
	SortNameAsc   = "name_asc"
	SortNameDesc  = "name_desc"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
)

var productOrder = map[string]string{
	SortNameAsc:   "p.name COLLATE NOCASE ASC, p.id",
	SortNameDesc:  "p.name COLLATE NOCASE DESC, p.id",
	SortPriceAsc:  "CAST(p.price AS REAL) ASC, p.id",
	SortPriceDesc: "CAST(p.price AS REAL) DESC, p.id",
	SortNewest:    "p.created_at DESC, p.rowid DESC",
}

// ValidSort reports whether key names a known ordering.
func ValidSort(key string) bool {
	_, ok := productOrder[key]
	return ok
}

type ProductQuery struct {
	CategoryID string
	// Term matches name, description or category name, case-insensitively.
	Term       string
	Sort       string
	Scope      Scope
	ActiveOnly bool
}

func (r *ProductRepo) List(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	where := []string{q.Scope.where("p")}
	args := []any{}
	if q.ActiveOnly {
		where = append(where, "p.active = 1")
	}
	if q.CategoryID != "" {
		where = append(where, "p.category_id = ?")
		args = append(args, q.CategoryID)
	}
	if t := strings.TrimSpace(q.Term); t != "" {
		like := "%" + escapeLike(strings.ToLower(t)) + "%"
		where = append(where, `(LOWER(p.name) LIKE ? ESCAPE '\' OR LOWER(p.description) LIKE ? ESCAPE '\' OR LOWER(c.name) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	order, ok := productOrder[q.Sort]
	if !ok {
		order = productOrder[SortNameAsc]
	}

	out := []domain.Product{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
  SELECT`+productCols+`
  FROM products p
  LEFT JOIN categories c ON c.id = p.category_id
  WHERE `+strings.Join(where, " AND ")+`
  ORDER BY `+order, args...)
	return out, err
}

func (r *ProductRepo) Get(ctx context.Context, id string, scope Scope) (domain.Product, error) {
	var p domain.Product
	err := sqlx.GetContext(ctx, r.db, &p, `
  SELECT`+productCols+`
  FROM products p
  LEFT JOIN categories c ON c.id = p.category_id
  WHERE p.id = ? AND `+scope.where("p"), id)
	return p, notFound(err, "product", id)
}

func (r *ProductRepo) Create(ctx context.Context, p domain.Product) error {
	_, err := r.db.ExecContext(ctx, `
  INSERT INTO products(id, category_id, name, description, price, stock, image_url, active, lifecycle, version, created_at)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'ACTIVE', 1, ?)
`, p.ID, p.CategoryID, p.Name, p.Description, p.Price.StringFixed(2), p.Stock, p.ImageURL, p.Active, now())
	return MapErr(err)
}

// Update overwrites the editable fields of a live product and bumps its
// version. A positive expectVersion must match the stored version.
func (r *ProductRepo) Update(ctx context.Context, p domain.Product, expectVersion int) error {
	q := `
  UPDATE products
  SET category_id = ?, name = ?, description = ?, price = ?, stock = ?, image_url = ?, active = ?,
      version = version + 1, updated_at = ?
  WHERE id = ? AND lifecycle = 'ACTIVE'`
	args := []any{p.CategoryID, p.Name, p.Description, p.Price.StringFixed(2), p.Stock, p.ImageURL, p.Active, now(), p.ID}
	if expectVersion > 0 {
		q += ` AND version = ?`
		args = append(args, expectVersion)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return MapErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, p.ID, LiveOnly); err != nil {
		return err
	}
	return fmt.Errorf("product %q changed since version %d: %w", p.ID, expectVersion, domain.ErrConcurrencyConflict)
}

func (r *ProductRepo) SetLifecycle(ctx context.Context, id string, l domain.Lifecycle) error {
	res, err := r.db.ExecContext(ctx, `
  UPDATE products SET lifecycle = ?, version = version + 1, updated_at = ? WHERE id = ?
`, string(l), now(), id)
	if err != nil {
		return MapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("product %q", id)
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return MapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("product %q", id)
	}
	return nil
}

// ImageRefs counts products in any lifecycle state that use the image url.
func (r *ProductRepo) ImageRefs(ctx context.Context, url string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM products WHERE image_url = ?`, url)
	return n, MapErr(err)
}

// ProductStats feeds the admin dashboard.
type ProductStats struct {
	Live       int `db:"live"`
	LiveActive int `db:"live_active"`
	Deleted    int `db:"deleted"`
	LowStock   int `db:"low_stock"`
	OutOfStock int `db:"out_of_stock"`
}

func (r *ProductRepo) Stats(ctx context.Context) (ProductStats, error) {
	var s ProductStats
	err := sqlx.GetContext(ctx, r.db, &s, `
  SELECT
    COALESCE(SUM(lifecycle = 'ACTIVE'), 0)                                   AS live,
    COALESCE(SUM(lifecycle = 'ACTIVE' AND active = 1), 0)                    AS live_active,
    COALESCE(SUM(lifecycle = 'DELETED'), 0)                                  AS deleted,
    COALESCE(SUM(lifecycle = 'ACTIVE' AND stock BETWEEN 1 AND ?), 0)         AS low_stock,
    COALESCE(SUM(lifecycle = 'ACTIVE' AND stock = 0), 0)                     AS out_of_stock
  FROM products
`, domain.LowStockThreshold)
	return s, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
