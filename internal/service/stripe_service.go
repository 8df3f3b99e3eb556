package service

import (
	"context"
	"errors"
	"fmt"

	"codedesk/internal/config"
	"codedesk/internal/model"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
)

type CheckoutSession struct {
	SessionID string
	URL       string
}

type VerifyResult struct {
	Success bool
	IsPaid  bool
}

// StripeService runs checkout and turns settled payments into Pro grants.
type StripeService struct {
	cfg          *config.Config
	gateway      StripeGateway
	entitlements EntitlementService
	logger       zerolog.Logger
}

// NewStripeService returns the service with a scoped logger.
func NewStripeService(cfg *config.Config, gateway StripeGateway, entitlements EntitlementService, logger zerolog.Logger) *StripeService {
	lg := logger.With().Str("service", "StripeService").Logger()
	return &StripeService{cfg: cfg, gateway: gateway, entitlements: entitlements, logger: lg}
}

// CreateCheckoutSession creates a hosted checkout page for one unit of the configured price.
// userID and email travel as metadata so the webhook can resolve the user.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, email, userID string) (*CheckoutSession, error) {
	successURL, cancelURL := s.cfg.SuccessURL(), s.cfg.CancelURL()
	switch {
	case s.cfg.StripePriceID == "":
		return nil, fmt.Errorf("%w: STRIPE_PRICE_ID is empty", ErrConfiguration)
	case successURL == "" || cancelURL == "":
		return nil, fmt.Errorf("%w: APP_URL is empty", ErrConfiguration)
	}

	mode := s.cfg.StripeCheckoutMode
	if mode == "" {
		mode = string(stripe.CheckoutSessionModePayment)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(mode),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(s.cfg.StripePriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(userID),
		Metadata:          map[string]string{"userId": userID, "email": email},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	if mode == string(stripe.CheckoutSessionModePayment) {
		// Payment mode only creates a customer on request; the grant stores its id.
		params.CustomerCreation = stripe.String("always")
	}

	sess, err := s.gateway.NewCheckoutSession(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create Stripe checkout session")
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("session_id", sess.ID).Msg("Checkout session created")
	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// VerifyPaymentAndUpgrade confirms a session with Stripe after the browser redirect and grants
// Pro when it is paid. The redirect alone proves nothing.
func (s *StripeService) VerifyPaymentAndUpgrade(ctx context.Context, sessionID, callerID string) (*VerifyResult, error) {
	return s.verifySession(ctx, sessionID, callerID, model.GrantSourceVerify)
}

// ReconcileSession re-runs the verify path for a support case. userID may be empty, in which
// case the session metadata decides.
func (s *StripeService) ReconcileSession(ctx context.Context, sessionID, userID string) (*VerifyResult, error) {
	return s.verifySession(ctx, sessionID, userID, model.GrantSourceAdmin)
}

func (s *StripeService) verifySession(ctx context.Context, sessionID, callerID, source string) (*VerifyResult, error) {
	sess, err := s.gateway.GetCheckoutSession(sessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to fetch checkout session")
		return nil, err
	}

	if !isSettled(sess.PaymentStatus) {
		s.logger.Info().
			Str("session_id", sessionID).
			Str("payment_status", string(sess.PaymentStatus)).
			Msg("Payment not yet completed")
		return &VerifyResult{Success: false, IsPaid: false}, nil
	}

	owner := sess.Metadata["userId"]
	if owner != "" && callerID != "" && owner != callerID {
		s.logger.Warn().Str("session_id", sessionID).Str("caller_id", callerID).Msg("Checkout session belongs to another user")
		return nil, ErrSessionOwnership
	}
	externalID := owner
	if externalID == "" {
		// Only a support reconcile may attribute an unowned session to the given user.
		if source != model.GrantSourceAdmin || callerID == "" {
			s.logger.Warn().Str("session_id", sessionID).Str("source", source).Msg("Paid checkout session has no userId metadata")
			return &VerifyResult{Success: false, IsPaid: true}, nil
		}
		externalID = callerID
	}

	_, err = s.entitlements.GrantPro(ctx, Identity{ExternalID: externalID, Email: sessionEmail(sess)}, sessionBilling(sess), source)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &VerifyResult{Success: false, IsPaid: true}, nil
		}
		return nil, err
	}
	return &VerifyResult{Success: true, IsPaid: true}, nil
}

// HandlePaymentEvent applies a verified webhook event. Only settled checkouts grant Pro;
// entitlement is never revoked, so the other variants are logged.
func (s *StripeService) HandlePaymentEvent(ctx context.Context, event PaymentEvent) error {
	meta := event.Meta()
	log := s.logger.With().Str("event_id", meta.ID).Str("event_type", meta.Type).Logger()

	switch e := event.(type) {
	case CheckoutCompleted:
		sess := e.Session
		switch sess.Mode {
		case stripe.CheckoutSessionModePayment, stripe.CheckoutSessionModeSubscription:
		default:
			log.Info().Str("mode", string(sess.Mode)).Msg("Ignoring checkout session mode")
			return nil
		}
		if !isSettled(sess.PaymentStatus) {
			log.Info().
				Str("session_id", sess.ID).
				Str("payment_status", string(sess.PaymentStatus)).
				Msg("Checkout completed without settled payment, waiting for async result")
			return nil
		}
		identity := Identity{ExternalID: sess.Metadata["userId"], Email: sessionEmail(sess)}
		_, err := s.entitlements.GrantPro(ctx, identity, sessionBilling(sess), model.GrantSourceWebhook)
		return err
	case CheckoutPaymentFailed:
		log.Warn().Str("session_id", e.Session.ID).Str("user_id", e.Session.Metadata["userId"]).Msg("Async checkout payment failed")
		return nil
	case SubscriptionChanged:
		customerID := ""
		if e.Subscription.Customer != nil {
			customerID = e.Subscription.Customer.ID
		}
		log.Info().
			Str("subscription_id", e.Subscription.ID).
			Str("stripe_customer_id", customerID).
			Str("status", string(e.Subscription.Status)).
			Msg("Subscription changed, entitlement left as is")
		return nil
	default:
		log.Warn().Msg("Unhandled Stripe webhook event")
		return nil
	}
}

// ParseWebhook verifies and decodes a raw Stripe webhook body.
func (s *StripeService) ParseWebhook(payload []byte, sigHeader string) (PaymentEvent, error) {
	event, err := s.gateway.ConstructEvent(payload, sigHeader)
	if err != nil {
		return nil, err
	}
	return DecodePaymentEvent(event)
}
