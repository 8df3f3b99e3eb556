package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"codedesk/internal/api/v1/dto"
	"codedesk/internal/service"

	"github.com/rs/zerolog"
)

const maxWebhookBodyBytes = 1 << 20

// PaymentWebhookService verifies and applies Stripe webhook events.
type PaymentWebhookService interface {
	ParseWebhook(payload []byte, sigHeader string) (service.PaymentEvent, error)
	HandlePaymentEvent(ctx context.Context, event service.PaymentEvent) error
}

// EventDeduper runs a webhook handler once per provider event id.
type EventDeduper interface {
	Process(ctx context.Context, provider, eventID string, fn func(context.Context) error) (bool, error)
}

// WebhookHandler receives Stripe and Clerk webhooks.
type WebhookHandler struct {
	payments PaymentWebhookService
	clerk    service.ClerkVerifier
	users    service.UserService
	dedup    EventDeduper
	archive  service.WebhookArchive
	logger   zerolog.Logger
}

func NewWebhookHandler(payments PaymentWebhookService, clerk service.ClerkVerifier, users service.UserService, dedup EventDeduper, archive service.WebhookArchive, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		payments: payments,
		clerk:    clerk,
		users:    users,
		dedup:    dedup,
		archive:  archive,
		logger:   logger.With().Str("handler", "WebhookHandler").Logger(),
	}
}

// RegisterRoutes mounts the webhook endpoints. They are authenticated by signature, not by token.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/stripe", h.Stripe)
	mux.HandleFunc("/webhooks/clerk", h.Clerk)
}

func (h *WebhookHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		h.logger.Error().Err(err).Msg("Failed to read webhook payload")
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		return nil, false
	}
	return payload, true
}

func (h *WebhookHandler) store(ctx context.Context, provider, eventID string, payload []byte) {
	if err := h.archive.Store(ctx, provider, eventID, payload); err != nil {
		h.logger.Warn().Err(err).Str("provider", provider).Str("event_id", eventID).Msg("Failed to archive webhook payload")
	}
}

// Stripe godoc
// @Summary Receive a Stripe webhook
// @Description Verifies the Stripe-Signature header over the raw body and applies checkout events.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Stripe signature header"
// @Success 200 {object} dto.WebhookAckDTO
// @Failure 400 {string} string "invalid signature or payload"
// @Failure 413 {string} string "payload too large"
// @Failure 500 {string} string "failed to process event"
// @Router /webhooks/stripe [post]
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	payload, ok := h.readBody(w, r)
	if !ok {
		return
	}

	event, err := h.payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidSignature):
			h.logger.Warn().Err(err).Msg("Signature verification failed for Stripe webhook")
			http.Error(w, "signature verification failed", http.StatusBadRequest)
		case errors.Is(err, service.ErrMalformedEvent):
			h.logger.Error().Err(err).Msg("Malformed Stripe webhook payload")
			http.Error(w, "invalid event payload", http.StatusBadRequest)
		default:
			h.logger.Error().Err(err).Msg("Failed to parse Stripe webhook")
			http.Error(w, "failed to process event", http.StatusInternalServerError)
		}
		return
	}

	meta := event.Meta()
	h.logger.Info().Str("event_id", meta.ID).Str("event_type", meta.Type).Msg("Stripe webhook received")
	h.store(r.Context(), "stripe", meta.ID, payload)

	var unresolved error
	duplicate, err := h.dedup.Process(r.Context(), "stripe", meta.ID, func(ctx context.Context) error {
		err := h.payments.HandlePaymentEvent(ctx, event)
		if errors.Is(err, service.ErrUserNotFound) {
			unresolved = err
			return nil
		}
		return err
	})
	if err != nil {
		h.logger.Error().Err(err).Str("event_id", meta.ID).Str("event_type", meta.Type).Msg("Failed to process Stripe webhook")
		http.Error(w, "failed to process event", http.StatusInternalServerError)
		return
	}

	ack := dto.WebhookAckDTO{Received: true, Duplicate: duplicate}
	if unresolved != nil {
		// Acknowledged; left for manual reconciliation.
		h.logger.Warn().Err(unresolved).Str("event_id", meta.ID).Msg("Stripe webhook did not match a user")
		ack.Message = "user not found"
	}
	writeJSON(w, h.logger, http.StatusOK, ack)
}

// Clerk godoc
// @Summary Receive a Clerk webhook
// @Description Verifies the Svix signature headers and records newly created users.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param svix-id header string true "Svix message id"
// @Param svix-timestamp header string true "Svix timestamp"
// @Param svix-signature header string true "Svix signature"
// @Success 200 {object} dto.WebhookAckDTO
// @Failure 400 {string} string "invalid signature or payload"
// @Failure 500 {string} string "failed to sync user"
// @Router /webhooks/clerk [post]
func (h *WebhookHandler) Clerk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	payload, ok := h.readBody(w, r)
	if !ok {
		return
	}

	evt, err := h.clerk.Verify(payload, r.Header)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Clerk webhook rejected")
		http.Error(w, "invalid webhook", http.StatusBadRequest)
		return
	}
	h.store(r.Context(), "clerk", evt.MsgID, payload)

	if evt.Type != service.ClerkEventUserCreated {
		h.logger.Debug().Str("event_type", evt.Type).Msg("Ignoring Clerk webhook")
		writeJSON(w, h.logger, http.StatusOK, dto.WebhookAckDTO{Received: true})
		return
	}

	duplicate, err := h.dedup.Process(r.Context(), "clerk", evt.MsgID, func(ctx context.Context) error {
		_, err := h.users.Sync(ctx, evt.UserID, evt.Email, evt.Name)
		return err
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", evt.UserID).Msg("Failed to sync user from Clerk")
		http.Error(w, "failed to sync user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.WebhookAckDTO{Received: true, Duplicate: duplicate})
}
