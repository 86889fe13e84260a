package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"app/internal/config"
	"app/internal/metrics"
	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	customerpkg "github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrUnknownPlan         = errors.New("unknown or unconfigured subscription plan")
	ErrUnknownPack         = errors.New("unknown credit pack")
	ErrInvalidCheckoutType = errors.New("checkout type must be 'subscription' or 'payment'")
)

// SubscriptionPlan describes a recurring plan and its monthly credit grant.
type SubscriptionPlan struct {
	Key        string `json:"key"`
	Tier       string `json:"tier"`
	Credits    int    `json:"credits"`
	PriceCents int64  `json:"priceCents"`
}

// CreditPack describes a one-time credit purchase.
type CreditPack struct {
	Key        string `json:"key"`
	Credits    int    `json:"credits"`
	PriceCents int64  `json:"priceCents"`
}

// Pricing is the public plan/pack catalogue.
type Pricing struct {
	Plans []SubscriptionPlan `json:"plans"`
	Packs []CreditPack       `json:"packages"`
}

// The catalogue is fixed at build time; Stripe price ids for the plans come
// from configuration.
var (
	subscriptionPlans = []SubscriptionPlan{
		{Key: "basic", Tier: model.TierBasic, Credits: 30, PriceCents: 999},
		{Key: "premium", Tier: model.TierPremium, Credits: 100, PriceCents: 1999},
	}
	creditPacks = []CreditPack{
		{Key: "starter", Credits: 10, PriceCents: 499},
		{Key: "standard", Credits: 30, PriceCents: 1299},
		{Key: "pro", Credits: 100, PriceCents: 3999},
	}
)

// BillingService manages the Stripe integration: checkout sessions for plans
// and credit packs, and the webhook that applies completed payments.
type BillingService struct {
	cfg       *config.Config
	userRepo  repository.UserRepository
	txRepo    repository.TransactionRepository
	collector *metrics.Collector
	logger    zerolog.Logger
}

// NewBillingService initializes the Stripe key and returns the service with a
// scoped logger.
func NewBillingService(cfg *config.Config, userRepo repository.UserRepository, txRepo repository.TransactionRepository, collector *metrics.Collector, logger zerolog.Logger) *BillingService {
	stripe.Key = cfg.StripeSecretKey
	return &BillingService{
		cfg:       cfg,
		userRepo:  userRepo,
		txRepo:    txRepo,
		collector: collector,
		logger:    logger.With().Str("service", "BillingService").Logger(),
	}
}

// Pricing returns the plan and pack catalogue.
func (s *BillingService) Pricing() Pricing {
	return Pricing{Plans: subscriptionPlans, Packs: creditPacks}
}

func (s *BillingService) planByKey(key string) (SubscriptionPlan, string, bool) {
	var priceID string
	switch key {
	case "basic":
		priceID = s.cfg.StripePriceBasic
	case "premium":
		priceID = s.cfg.StripePricePremium
	default:
		return SubscriptionPlan{}, "", false
	}
	for _, p := range subscriptionPlans {
		if p.Key == key {
			return p, priceID, priceID != ""
		}
	}
	return SubscriptionPlan{}, "", false
}

func packByKey(key string) (CreditPack, bool) {
	for _, p := range creditPacks {
		if p.Key == key {
			return p, true
		}
	}
	return CreditPack{}, false
}

// getOrCreateCustomer ensures a Stripe customer exists for the user.
func (s *BillingService) getOrCreateCustomer(ctx context.Context, user *model.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Email:    stripe.String(user.Email),
		Metadata: map[string]string{"user_id": user.ID},
	}
	if user.Name != nil {
		params.Name = stripe.String(*user.Name)
	}
	cust, err := customerpkg.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	if err := s.userRepo.UpdateStripeCustomerID(ctx, user.ID, cust.ID); err != nil {
		return "", fmt.Errorf("store stripe customer id: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession creates a Stripe Checkout session for either a
// recurring plan or a one-time credit pack and returns its id and redirect
// URL.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID, plan, checkoutType string) (string, string, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("fetch user: %w", err)
	}
	if user == nil {
		return "", "", ErrUserNotFound
	}
	customerID, err := s.getOrCreateCustomer(ctx, user)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get or create Stripe customer")
		return "", "", err
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(s.cfg.FrontendURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:          stripe.String(s.cfg.FrontendURL + "/billing/cancel"),
	}

	switch checkoutType {
	case "subscription":
		p, priceID, ok := s.planByKey(plan)
		if !ok {
			return "", "", ErrUnknownPlan
		}
		params.Mode = stripe.String(stripe.CheckoutSessionModeSubscription)
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		}
		params.Metadata = map[string]string{"user_id": userID, "plan": p.Key}
	case "payment":
		pack, ok := packByKey(plan)
		if !ok {
			return "", "", ErrUnknownPack
		}
		params.Mode = stripe.String(stripe.CheckoutSessionModePayment)
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(pack.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d credits", pack.Credits)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
		params.Metadata = map[string]string{
			"user_id": userID,
			"pack":    pack.Key,
			"credits": strconv.Itoa(pack.Credits),
		}
	default:
		return "", "", ErrInvalidCheckoutType
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("plan", plan).Str("type", checkoutType).Msg("Failed to create Stripe checkout session")
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

// ApplySubscriptionGrant credits the user with the plan's monthly grant and
// sets the subscription tier. Subscription grants create no Transaction
// record; only one-time credit purchases do.
func (s *BillingService) ApplySubscriptionGrant(ctx context.Context, userID, planKey string) error {
	var plan *SubscriptionPlan
	for i := range subscriptionPlans {
		if subscriptionPlans[i].Key == planKey {
			plan = &subscriptionPlans[i]
			break
		}
	}
	if plan == nil {
		return ErrUnknownPlan
	}
	if err := s.userRepo.AddCredits(ctx, userID, plan.Credits); err != nil {
		return fmt.Errorf("grant subscription credits: %w", err)
	}
	if err := s.userRepo.SetSubscriptionTier(ctx, userID, plan.Tier); err != nil {
		return fmt.Errorf("set subscription tier: %w", err)
	}
	s.collector.RecordCreditsGranted(plan.Credits)
	return nil
}

// ApplyCreditPurchase credits the user and records the purchase as a
// Transaction.
func (s *BillingService) ApplyCreditPurchase(ctx context.Context, userID string, credits int, amountCents int64, sessionID string) error {
	if err := s.userRepo.AddCredits(ctx, userID, credits); err != nil {
		return fmt.Errorf("grant purchased credits: %w", err)
	}
	tx := &model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        model.TransactionKindCreditPurchase,
		AmountCents: amountCents,
		Credits:     credits,
		Status:      model.TransactionStatusCompleted,
	}
	if sessionID != "" {
		tx.StripeSessionID = &sessionID
	}
	if err := s.txRepo.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("record credit purchase: %w", err)
	}
	s.collector.RecordCreditsGranted(credits)
	return nil
}

// resolveEventUser resolves a user from webhook metadata, falling back to the
// Stripe customer reference.
func (s *BillingService) resolveEventUser(ctx context.Context, metadata map[string]string, customerID string) (string, error) {
	if userID, ok := metadata["user_id"]; ok && userID != "" {
		return userID, nil
	}
	if customerID == "" {
		return "", errors.New("cannot determine user: missing metadata and customer id")
	}
	u, err := s.userRepo.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("lookup user by stripe customer: %w", err)
	}
	if u == nil {
		return "", fmt.Errorf("no user found for customer %s", customerID)
	}
	return u.ID, nil
}

func writeWebhookError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// HandleWebhook verifies and processes Stripe webhook events. Signature
// failures reject the request before any state change.
func (s *BillingService) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read Stripe webhook payload")
		writeWebhookError(w, http.StatusBadRequest, "failed to read payload")
		return
	}
	sig := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Signature verification failed for Stripe webhook")
		writeWebhookError(w, http.StatusBadRequest, "signature verification failed")
		return
	}
	s.collector.RecordWebhookEvent(string(event.Type))
	s.logger.Info().Str("event_type", string(event.Type)).Msg("Stripe webhook received")

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			s.logger.Error().Err(err).Msg("Invalid checkout.session payload")
			writeWebhookError(w, http.StatusBadRequest, "invalid checkout.session data")
			return
		}
		userID := cs.Metadata["user_id"]
		if userID == "" {
			s.logger.Error().Str("session_id", cs.ID).Msg("Missing user_id in checkout session metadata")
			writeWebhookError(w, http.StatusBadRequest, "missing user_id in metadata")
			return
		}

		switch cs.Mode {
		case stripe.CheckoutSessionModeSubscription:
			if err := s.ApplySubscriptionGrant(ctx, userID, cs.Metadata["plan"]); err != nil {
				s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to apply subscription grant")
				if errors.Is(err, ErrUnknownPlan) {
					writeWebhookError(w, http.StatusBadRequest, "unknown plan in metadata")
					return
				}
				writeWebhookError(w, http.StatusInternalServerError, "failed to apply subscription")
				return
			}
		case stripe.CheckoutSessionModePayment:
			credits, err := strconv.Atoi(cs.Metadata["credits"])
			if err != nil || credits <= 0 {
				s.logger.Error().Str("session_id", cs.ID).Str("credits", cs.Metadata["credits"]).Msg("Missing or invalid credits in checkout session metadata")
				writeWebhookError(w, http.StatusBadRequest, "invalid credits in metadata")
				return
			}
			if err := s.ApplyCreditPurchase(ctx, userID, credits, cs.AmountTotal, cs.ID); err != nil {
				s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to apply credit purchase")
				writeWebhookError(w, http.StatusInternalServerError, "failed to apply credit purchase")
				return
			}
		default:
			s.logger.Warn().Str("mode", string(cs.Mode)).Msg("Ignoring checkout session with unexpected mode")
		}
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			s.logger.Error().Err(err).Msg("Invalid customer.subscription.deleted payload")
			writeWebhookError(w, http.StatusBadRequest, "invalid subscription data")
			return
		}
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		userID, err := s.resolveEventUser(ctx, sub.Metadata, customerID)
		if err != nil {
			s.logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("Failed to determine user for subscription deletion")
			writeWebhookError(w, http.StatusBadRequest, "failed to identify user")
			return
		}
		if err := s.userRepo.SetSubscriptionTier(ctx, userID, model.TierFree); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to downgrade user after subscription deletion")
			writeWebhookError(w, http.StatusInternalServerError, "failed to downgrade subscription")
			return
		}
	default:
		s.logger.Debug().Str("event_type", string(event.Type)).Msg("Ignoring unhandled Stripe event")
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
