package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway is the subset of the Stripe API the billing flow depends on.
type StripeGateway interface {
	// ConstructEvent verifies sigHeader over the exact raw payload bytes.
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
	GetCheckoutSession(id string) (*stripe.CheckoutSession, error)
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeGateway struct {
	sessions      checkoutsession.Client
	webhookSecret string
}

// NewStripeGateway binds a gateway to one secret key. Nothing is stored in stripe.Key.
func NewStripeGateway(secretKey, webhookSecret string) StripeGateway {
	return &stripeGateway{
		sessions:      checkoutsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (g *stripeGateway) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if sigHeader == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing Stripe-Signature header", ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}

func (g *stripeGateway) GetCheckoutSession(id string) (*stripe.CheckoutSession, error) {
	sess, err := g.sessions.Get(id, nil)
	if err != nil {
		return nil, classifyStripeError(err, "retrieve checkout session "+id)
	}
	return sess, nil
}

func (g *stripeGateway) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	sess, err := g.sessions.New(params)
	if err != nil {
		return nil, classifyStripeError(err, "create checkout session")
	}
	return sess, nil
}

// classifyStripeError maps a missing resource to ErrSessionNotFound and anything else to
// ErrTransientFetch, keeping the Stripe message.
func classifyStripeError(err error, op string) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.Code == stripe.ErrorCodeResourceMissing || serr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %s", op, ErrSessionNotFound, serr.Msg)
		}
		return fmt.Errorf("%s: %w: %s", op, ErrTransientFetch, serr.Msg)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrTransientFetch, err)
}
