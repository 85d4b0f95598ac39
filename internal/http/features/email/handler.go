package email

import (
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/tendant/simple-todo/internal/httputil"
	"github.com/tendant/simple-todo/pkg/auth"
)

const (
	msgVerified = "🎉 Your email has been successfully verified! Welcome to our platform! You can now log in to access all features."
	msgResent   = "📧 A fresh 6-digit verification code has been sent to your inbox! Please enter the code to activate your account."
)

type Handler struct {
	logger      *slog.Logger
	authService *auth.Service
}

func NewHandler(logger *slog.Logger, authService *auth.Service) *Handler {
	return &Handler{
		logger:      logger,
		authService: authService,
	}
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

func (r VerifyEmailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required.Error("Token is required")),
	)
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

func (r ResendVerificationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required.Error("Email is required"), is.Email.Error("Email should be valid")),
	)
}

// VerifyEmail handles email verification.
// POST /auth/verify-email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), req.Token); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.Message(w, http.StatusOK, msgVerified)
}

// ResendVerification mails a fresh verification code.
// POST /auth/resend-verification
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.authService.ResendVerification(r.Context(), req.Email); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.Message(w, http.StatusOK, msgResent)
}
