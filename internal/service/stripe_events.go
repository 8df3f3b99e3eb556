package service

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

// PaymentEvent is a verified Stripe event decoded into one of the variants below.
type PaymentEvent interface {
	Meta() EventMeta
}

// EventMeta identifies the Stripe event a variant was decoded from.
type EventMeta struct {
	ID   string
	Type string
}

func (m EventMeta) Meta() EventMeta { return m }

// CheckoutCompleted is checkout.session.completed or checkout.session.async_payment_succeeded.
type CheckoutCompleted struct {
	EventMeta
	Session *stripe.CheckoutSession
}

// CheckoutPaymentFailed is checkout.session.async_payment_failed.
type CheckoutPaymentFailed struct {
	EventMeta
	Session *stripe.CheckoutSession
}

// SubscriptionChanged is customer.subscription.updated or customer.subscription.deleted.
type SubscriptionChanged struct {
	EventMeta
	Subscription *stripe.Subscription
}

// UnhandledEvent is any other event type.
type UnhandledEvent struct {
	EventMeta
}

// DecodePaymentEvent maps a verified event onto its variant. A known type whose object
// does not decode returns ErrMalformedEvent.
func DecodePaymentEvent(event stripe.Event) (PaymentEvent, error) {
	meta := EventMeta{ID: event.ID, Type: string(event.Type)}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		sess, err := decodeCheckoutSession(event)
		if err != nil {
			return nil, err
		}
		return CheckoutCompleted{EventMeta: meta, Session: sess}, nil
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		sess, err := decodeCheckoutSession(event)
		if err != nil {
			return nil, err
		}
		return CheckoutPaymentFailed{EventMeta: meta, Session: sess}, nil
	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := decodeObject(event, &sub); err != nil {
			return nil, err
		}
		if sub.ID == "" {
			return nil, fmt.Errorf("%w: %s without subscription id", ErrMalformedEvent, event.Type)
		}
		return SubscriptionChanged{EventMeta: meta, Subscription: &sub}, nil
	default:
		return UnhandledEvent{EventMeta: meta}, nil
	}
}

func decodeCheckoutSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var sess stripe.CheckoutSession
	if err := decodeObject(event, &sess); err != nil {
		return nil, err
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("%w: %s without session id", ErrMalformedEvent, event.Type)
	}
	return &sess, nil
}

func decodeObject(event stripe.Event, v any) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("%w: %s has no data object", ErrMalformedEvent, event.Type)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedEvent, event.Type, err)
	}
	return nil
}

// sessionEmail prefers the email the session was created with over the one the customer typed.
func sessionEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerEmail != "" {
		return sess.CustomerEmail
	}
	if sess.CustomerDetails != nil {
		return sess.CustomerDetails.Email
	}
	return ""
}

func sessionBilling(sess *stripe.CheckoutSession) Billing {
	b := Billing{SubscriptionID: sess.ID}
	if sess.Customer != nil {
		b.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		b.SubscriptionID = sess.Subscription.ID
	}
	return b
}

func isSettled(status stripe.CheckoutSessionPaymentStatus) bool {
	return status == stripe.CheckoutSessionPaymentStatusPaid ||
		status == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
}
