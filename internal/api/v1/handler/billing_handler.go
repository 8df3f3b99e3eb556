package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"codedesk/internal/api/v1/dto"
	"codedesk/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// BillingService creates and confirms checkout sessions.
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, email, userID string) (*service.CheckoutSession, error)
	VerifyPaymentAndUpgrade(ctx context.Context, sessionID, callerID string) (*service.VerifyResult, error)
}

type BillingHandler struct {
	billing  BillingService
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewBillingHandler(billing BillingService, v *validator.Validate, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, validate: v, logger: logger.With().Str("handler", "BillingHandler").Logger()}
}

// RegisterRoutes mounts v1 billing routes
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/billing/checkout", authMw(http.HandlerFunc(h.Checkout)))
	mux.Handle("/billing/verify", authMw(http.HandlerFunc(h.Verify)))
}

// Checkout godoc
// @Summary Create a Stripe Checkout session
// @Description Creates a hosted checkout page for the Pro plan and returns its id and URL.
// @Tags billing
// @Accept json
// @Produce json
// @Param checkout body dto.CheckoutRequestDTO true "Checkout request"
// @Success 200 {object} dto.CheckoutResponseDTO
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "billing is not configured"
// @Failure 503 {string} string "payment provider unavailable"
// @Router /billing/checkout [post]
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := h.billing.CreateCheckoutSession(r.Context(), req.Email, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to create checkout session")
		switch {
		case errors.Is(err, service.ErrConfiguration):
			http.Error(w, "billing is not configured", http.StatusInternalServerError)
		case errors.Is(err, service.ErrTransientFetch):
			http.Error(w, "payment provider unavailable", http.StatusServiceUnavailable)
		default:
			http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.CheckoutResponseDTO{SessionID: sess.SessionID, URL: sess.URL})
}

// Verify godoc
// @Summary Verify a checkout session and upgrade the caller
// @Description Fetches the session from Stripe and grants Pro when it is paid.
// @Tags billing
// @Accept json
// @Produce json
// @Param verify body dto.VerifyPaymentRequestDTO true "Verify request"
// @Success 200 {object} dto.VerifyPaymentResponseDTO
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "session belongs to another user"
// @Failure 404 {string} string "session not found"
// @Failure 503 {string} string "payment provider unavailable, retry"
// @Router /billing/verify [post]
func (h *BillingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.VerifyPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.billing.VerifyPaymentAndUpgrade(r.Context(), req.SessionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			http.Error(w, "session not found", http.StatusNotFound)
		case errors.Is(err, service.ErrSessionOwnership):
			http.Error(w, "session belongs to another user", http.StatusForbidden)
		case errors.Is(err, service.ErrTransientFetch):
			http.Error(w, "payment provider unavailable, retry", http.StatusServiceUnavailable)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Str("session_id", req.SessionID).Msg("failed to verify payment")
			http.Error(w, "failed to verify payment", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.VerifyPaymentResponseDTO{Success: res.Success, IsPaid: res.IsPaid})
}
