package dto

// WebhookAckDTO is the body returned to webhook senders
type WebhookAckDTO struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}
