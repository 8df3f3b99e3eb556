package model

import "time"

// Resolution paths taken by the entitlement reconciler.
const (
	ResolvedByExternalID = "external_id"
	ResolvedByCreation   = "created"
	ResolvedByEmail      = "email"
)

// Sources that trigger a Pro grant.
const (
	GrantSourceWebhook = "webhook"
	GrantSourceVerify  = "verify"
	GrantSourceAdmin   = "admin"
)

// EntitlementEvent is published after a Pro grant has been stored.
type EntitlementEvent struct {
	UserID               string    `json:"user_id"`
	ExternalID           string    `json:"external_id"`
	Email                string    `json:"email"`
	Path                 string    `json:"path"`
	Source               string    `json:"source"`
	AlreadyPro           bool      `json:"already_pro"`
	StripeCustomerID     string    `json:"stripe_customer_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id"`
	GrantedAt            time.Time `json:"granted_at"`
}
