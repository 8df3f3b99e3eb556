package model

import "time"

// User represents an authenticated principal and its Pro entitlement.
type User struct {
	ID                   string     `db:"id" json:"id"`
	UserID               string     `db:"user_id" json:"userId"`
	Email                string     `db:"email" json:"email"`
	Name                 string     `db:"name" json:"name"`
	IsPro                bool       `db:"is_pro" json:"isPro"`
	ProSince             *time.Time `db:"pro_since" json:"proSince,omitempty"`
	StripeCustomerID     *string    `db:"stripe_customer_id" json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID *string    `db:"stripe_subscription_id" json:"stripeSubscriptionId,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updatedAt"`
}

// ProGrant carries the billing correlation ids applied by a Pro grant.
type ProGrant struct {
	StripeCustomerID     string
	StripeSubscriptionID string
	GrantedAt            time.Time
}
