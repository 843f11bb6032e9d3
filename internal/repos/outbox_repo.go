package repos

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// OutboxRecord is an event written in the same transaction as the state it describes.
type OutboxRecord struct {
	ID        int64  `db:"id"`
	EventID   string `db:"event_id"`
	Topic     string `db:"topic"`
	Key       string `db:"key"`
	Payload   string `db:"payload"`
	CreatedAt string `db:"created_at"`
	SentAt    string `db:"sent_at"`
}

type OutboxRepo struct{ db sqlx.ExtContext }

func NewOutboxRepo(db sqlx.ExtContext) *OutboxRepo { return &OutboxRepo{db: db} }

func (r *OutboxRepo) WithTx(tx *sqlx.Tx) *OutboxRepo { return &OutboxRepo{db: tx} }

func (r *OutboxRepo) Append(ctx context.Context, rec OutboxRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox(event_id, topic, key, payload, created_at) VALUES (?, ?, ?, ?, ?)
	`, rec.EventID, rec.Topic, rec.Key, rec.Payload, now())
	return MapErr(err)
}

// FetchPending returns unsent records, oldest first.
func (r *OutboxRepo) FetchPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	out := []OutboxRecord{}
	err := sqlx.SelectContext(ctx, r.db, &out, `
		SELECT id, event_id, topic, key, payload, created_at, sent_at
		FROM outbox
		WHERE sent_at = ''
		ORDER BY id
		LIMIT ?
	`, limit)
	return out, err
}

func (r *OutboxRepo) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`UPDATE outbox SET sent_at = ? WHERE id IN (?)`, now(), ids)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	return err
}
