package dto

import (
	"time"

	"codedesk/internal/model"
)

// UserResponseDTO is returned by GET /users/me
type UserResponseDTO struct {
	UserID               string     `json:"userId"`
	Email                string     `json:"email"`
	Name                 string     `json:"name"`
	IsPro                bool       `json:"isPro"`
	ProSince             *time.Time `json:"proSince,omitempty"`
	StripeCustomerID     *string    `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID *string    `json:"stripeSubscriptionId,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func NewUserResponseDTO(u *model.User) *UserResponseDTO {
	return &UserResponseDTO{
		UserID:               u.UserID,
		Email:                u.Email,
		Name:                 u.Name,
		IsPro:                u.IsPro,
		ProSince:             u.ProSince,
		StripeCustomerID:     u.StripeCustomerID,
		StripeSubscriptionID: u.StripeSubscriptionID,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}
