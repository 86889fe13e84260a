package model

import "time"

// Transaction kinds and statuses.
const (
	TransactionKindCreditPurchase = "credit_purchase"
	TransactionStatusCompleted    = "completed"
)

// Transaction records a completed one-time credit purchase. Subscription
// grants update the user row directly and create no Transaction.
type Transaction struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Kind            string    `db:"kind" json:"kind"`
	AmountCents     int64     `db:"amount_cents" json:"amount_cents"`
	Credits         int       `db:"credits" json:"credits"`
	StripeSessionID *string   `db:"stripe_session_id" json:"stripe_session_id,omitempty"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
