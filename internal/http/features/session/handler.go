package session

import (
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/tendant/simple-todo/internal/http/features/common"
	"github.com/tendant/simple-todo/internal/httputil"
	"github.com/tendant/simple-todo/pkg/auth"
)

const msgLoggedOut = "👋 You have been successfully logged out! Thanks for using our service. See you again soon!"

// Handler handles session endpoints.
type Handler struct {
	logger      *slog.Logger
	authService *auth.Service
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, authService *auth.Service) *Handler {
	return &Handler{
		logger:      logger,
		authService: authService,
	}
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate checks field presence.
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required.Error("Refresh token is required")),
	)
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Validate checks field presence.
func (r LogoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required.Error("Token is required")),
	)
}

// Refresh rotates the refresh token and issues a new access token.
// POST /auth/refresh-token
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	pair, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, common.NewTokenResponse(pair))
}

// Logout revokes the refresh token. It succeeds whether or not the token
// was known.
// POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	h.authService.Logout(r.Context(), req.RefreshToken)
	httputil.Message(w, http.StatusOK, msgLoggedOut)
}
