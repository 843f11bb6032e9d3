package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type CategoryRepo struct{ db sqlx.ExtContext }

func NewCategoryRepo(db sqlx.ExtContext) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) WithTx(tx *sqlx.Tx) *CategoryRepo { return &CategoryRepo{db: tx} }

const categoryCols = `
    c.id, c.name, c.description, c.lifecycle, c.created_at, c.updated_at,
    (SELECT COUNT(*) FROM products p
      WHERE p.category_id = c.id AND p.lifecycle = 'ACTIVE' AND p.active = 1) AS product_count`

func (r *CategoryRepo) List(ctx context.Context, scope Scope) ([]domain.Category, error) {
	out := []domain.Category{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
  SELECT`+categoryCols+`
  FROM categories c
  WHERE `+scope.where("c")+`
  ORDER BY c.name COLLATE NOCASE, c.id
`)
	return out, err
}

func (r *CategoryRepo) Get(ctx context.Context, id string, scope Scope) (domain.Category, error) {
	var c domain.Category
	err := sqlx.GetContext(ctx, r.db, &c, `
  SELECT`+categoryCols+`
  FROM categories c
  WHERE c.id = ? AND `+scope.where("c"), id)
	return c, notFound(err, "category", id)
}

// NameTaken reports whether a live category other than exceptID uses name.
func (r *CategoryRepo) NameTaken(ctx context.Context, name, exceptID string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `
  SELECT COUNT(*) FROM categories
  WHERE LOWER(name) = LOWER(?) AND id <> ? AND lifecycle = 'ACTIVE'
`, name, exceptID)
	return n > 0, err
}

func (r *CategoryRepo) Create(ctx context.Context, c domain.Category) error {
	_, err := r.db.ExecContext(ctx, `
  INSERT INTO categories(id, name, description, lifecycle, created_at)
  VALUES (?, ?, ?, 'ACTIVE', ?)
`, c.ID, c.Name, c.Description, now())
	return MapErr(err)
}

// Update edits a live category.
func (r *CategoryRepo) Update(ctx context.Context, c domain.Category) error {
	res, err := r.db.ExecContext(ctx, `
  UPDATE categories SET name = ?, description = ?, updated_at = ?
  WHERE id = ? AND lifecycle = 'ACTIVE'
`, c.Name, c.Description, now(), c.ID)
	if err != nil {
		return MapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("category %q", c.ID)
	}
	return nil
}

func (r *CategoryRepo) SetLifecycle(ctx context.Context, id string, l domain.Lifecycle) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET lifecycle = ?, updated_at = ? WHERE id = ?`, string(l), now(), id)
	if err != nil {
		return MapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("category %q", id)
	}
	return nil
}

func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return MapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundf("category %q", id)
	}
	return nil
}

// CountProducts counts products of a category visible under scope, whatever their active flag.
func (r *CategoryRepo) CountProducts(ctx context.Context, id string, scope Scope) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM products WHERE category_id = ? AND `+scope.where(""), id)
	return n, err
}

func (r *CategoryRepo) CountByLifecycle(ctx context.Context, l domain.Lifecycle) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT COUNT(*) FROM categories WHERE lifecycle = ?`, string(l))
	return n, err
}
