package handler

import (
	"errors"
	"net/http"

	"codedesk/internal/api/v1/dto"
	"codedesk/internal/service"

	"github.com/rs/zerolog"
)

type UserHandler struct {
	userService service.UserService
	logger      zerolog.Logger
}

func NewUserHandler(userService service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{userService: userService, logger: logger.With().Str("handler", "UserHandler").Logger()}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users/me", authMw(http.HandlerFunc(h.getUser)))
}

// getUser godoc
// @Summary Get the authenticated user
// @Description Returns the caller's user record, or null before the first sync or payment.
// @Tags users
// @Produce json
// @Success 200 {object} dto.UserResponseDTO
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to fetch user"
// @Router /users/me [get]
func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeJSON(w, h.logger, http.StatusOK, nil)
			return
		}
		http.Error(w, "failed to fetch user", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, dto.NewUserResponseDTO(user))
}
