package repos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

type UserRepo struct{ DB sqlx.ExtContext }

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{DB: db} }

const userCols = `u.id, u.email, u.full_name, u.password_hash, u.phone, u.address, u.city, u.zip_code,
  u.is_admin, u.is_seller, u.active, u.created_at, u.last_login_at`

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.DB, &u, `SELECT `+userCols+` FROM users u WHERE LOWER(u.email) = LOWER(?)`, email)
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, r.DB, &u, `SELECT `+userCols+` FROM users u WHERE u.id = ?`, id)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

func (r *UserRepo) Create(ctx context.Context, u domain.User) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users(id, email, full_name, password_hash, phone, address, city, zip_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.FullName, u.Hash, u.Phone, u.Address, u.City, u.ZipCode, now())
	return MapErr(err)
}

func (r *UserRepo) StampLogin(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, now(), id)
	return err
}

func (r *UserRepo) BindSession(ctx context.Context, sid, userID string) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sessions(id, user_id, created_at, last_seen) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, last_seen = excluded.last_seen
	`, sid, userID, now(), time.Now().Unix())
	return err
}

// SessionUser returns the user bound to sid and when the session was last seen.
func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, time.Time, error) {
	var row struct {
		domain.User
		LastSeen int64 `db:"last_seen"`
	}
	err := sqlx.GetContext(ctx, r.DB, &row, `
		SELECT `+userCols+`, s.last_seen
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ?`, sid)
	if err != nil {
		return nil, time.Time{}, notFound(err, "session", sid)
	}
	return &row.User, time.Unix(row.LastSeen, 0), nil
}

func (r *UserRepo) TouchSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE sessions SET last_seen = ? WHERE id = ?`, time.Now().Unix(), sid)
	return err
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sid)
	return err
}
