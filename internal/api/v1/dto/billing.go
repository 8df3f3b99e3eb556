package dto

// CheckoutRequestDTO starts a checkout for the authenticated user
type CheckoutRequestDTO struct {
	Email string `json:"email" validate:"required,email"`
}

type CheckoutResponseDTO struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// VerifyPaymentRequestDTO confirms a session after the Stripe redirect
type VerifyPaymentRequestDTO struct {
	SessionID string `json:"sessionId" validate:"required,startswith=cs_"`
}

type VerifyPaymentResponseDTO struct {
	Success bool `json:"success"`
	IsPaid  bool `json:"isPaid"`
}
