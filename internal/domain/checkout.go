package domain

// CheckoutDraft holds the shipping details entered at review until the order is placed.
type CheckoutDraft struct {
	SessionID      string `db:"session_id"`
	UserID         string `db:"user_id"`
	IdempotencyKey string `db:"idempotency_key"`
	CreatedAt      string `db:"created_at"`
	Shipping
}
