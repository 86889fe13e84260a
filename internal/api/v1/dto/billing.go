package dto

// CheckoutRequest starts a Stripe Checkout session. Type selects between a
// recurring plan ("subscription") and a one-time credit pack ("payment");
// Plan names the plan or pack key.
type CheckoutRequest struct {
	Plan string `json:"plan" validate:"required"`
	Type string `json:"type" validate:"required,oneof=subscription payment"`
}

// CheckoutResponse carries the session reference for the client redirect.
type CheckoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}
