package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"codedesk/internal/api/v1/dto"
	"codedesk/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

type AssistantHandler struct {
	assistant service.AssistantService
	validate  *validator.Validate
	logger    zerolog.Logger
}

func NewAssistantHandler(assistant service.AssistantService, v *validator.Validate, logger zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, validate: v, logger: logger.With().Str("handler", "AssistantHandler").Logger()}
}

func (h *AssistantHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/assistant", authMw(http.HandlerFunc(h.Assist)))
}

// Assist godoc
// @Summary Ask the AI assistant to edit code
// @Description Sends the current code and request to Gemini and returns the rewritten code. Failures are reported in the body.
// @Tags assistant
// @Accept json
// @Produce json
// @Param request body dto.AssistantRequestDTO true "Assistant request"
// @Success 200 {object} dto.AssistantResponseDTO
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Router /assistant [post]
func (h *AssistantHandler) Assist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.AssistantRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	code, err := h.assistant.Assist(r.Context(), userID, req.UserPrompt, req.CurrentCode, req.Language)
	if err != nil {
		msg := "Failed to get AI assistance"
		if errors.Is(err, service.ErrProRequired) {
			msg = "AI assistance requires a Pro plan"
		}
		writeJSON(w, h.logger, http.StatusOK, dto.AssistantResponseDTO{Success: false, Error: msg})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.AssistantResponseDTO{Success: true, Code: code})
}
