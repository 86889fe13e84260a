package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingHandler exposes pricing, checkout and the Stripe webhook.
type BillingHandler struct {
	billingService *service.BillingService
	validate       *validator.Validate
	environment    string
	logger         zerolog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingService *service.BillingService, v *validator.Validate, environment string, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{billingService: billingService, validate: v, environment: environment, logger: logger}
}

// RegisterRoutes mounts billing routes. Pricing is public and the webhook
// authenticates through its Stripe signature, so neither goes through the
// auth middleware.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/billing/pricing", http.HandlerFunc(h.pricing))
	mux.Handle("/billing/checkout", authMw(http.HandlerFunc(h.checkout)))
	mux.Handle("/billing/webhook", http.HandlerFunc(h.webhook))
}

func (h *BillingHandler) pricing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.billingService.Pricing())
}

func (h *BillingHandler) checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "plan and type (subscription or payment) are required")
		return
	}

	sessionID, url, err := h.billingService.CreateCheckoutSession(r.Context(), userID, req.Plan, req.Type)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownPlan), errors.Is(err, service.ErrUnknownPack), errors.Is(err, service.ErrInvalidCheckoutType):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create checkout session")
			writeErrorDetail(w, http.StatusInternalServerError, "Failed to create checkout session", err, h.environment)
		}
		return
	}
	writeJSON(w, http.StatusOK, dto.CheckoutResponse{SessionID: sessionID, URL: url})
}

func (h *BillingHandler) webhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	h.billingService.HandleWebhook(w, r)
}
