package model

import "time"

// Subscription tiers a user can hold.
const (
	TierFree    = "free"
	TierBasic   = "basic"
	TierPremium = "premium"
)

// User represents an account holder. Credits are the spendable balance for
// try-on generations; the password hash never leaves the backend.
type User struct {
	ID               string    `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	Name             *string   `db:"name" json:"name,omitempty"`
	Credits          int       `db:"credits" json:"credits"`
	SubscriptionTier string    `db:"subscription_tier" json:"subscription_tier"`
	StripeCustomerID *string   `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
