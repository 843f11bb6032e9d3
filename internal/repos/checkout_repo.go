package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"storefront/internal/domain"
)

// DraftRepo stores the shipping details captured at review, one per session.
type DraftRepo struct{ db sqlx.ExtContext }

func NewDraftRepo(db sqlx.ExtContext) *DraftRepo { return &DraftRepo{db: db} }

func (r *DraftRepo) WithTx(tx *sqlx.Tx) *DraftRepo { return &DraftRepo{db: tx} }

func (r *DraftRepo) Save(ctx context.Context, d domain.CheckoutDraft) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_drafts
		  (session_id, user_id, shipping_address, shipping_city, shipping_zip, shipping_phone, notes, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
		  user_id = excluded.user_id,
		  shipping_address = excluded.shipping_address,
		  shipping_city = excluded.shipping_city,
		  shipping_zip = excluded.shipping_zip,
		  shipping_phone = excluded.shipping_phone,
		  notes = excluded.notes,
		  idempotency_key = excluded.idempotency_key,
		  created_at = excluded.created_at
	`, d.SessionID, d.UserID, d.Address, d.City, d.ZipCode, d.Phone, d.Notes, d.IdempotencyKey, now())
	return MapErr(err)
}

// Get returns the caller's draft for sid.
func (r *DraftRepo) Get(ctx context.Context, sid, userID string) (domain.CheckoutDraft, error) {
	var d domain.CheckoutDraft
	err := sqlx.GetContext(ctx, r.db, &d, `
		SELECT session_id, user_id, shipping_address, shipping_city, shipping_zip, shipping_phone, notes,
		       idempotency_key, created_at
		FROM checkout_drafts
		WHERE session_id = ? AND user_id = ?
	`, sid, userID)
	return d, notFound(err, "checkout draft", sid)
}

func (r *DraftRepo) Delete(ctx context.Context, sid string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM checkout_drafts WHERE session_id = ?`, sid)
	return err
}
