package me

import (
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/tendant/simple-todo/internal/http/features/common"
	"github.com/tendant/simple-todo/internal/httputil"
	"github.com/tendant/simple-todo/pkg/auth"
	"github.com/tendant/simple-todo/pkg/domain"
	"github.com/tendant/simple-todo/pkg/profile"
)

const (
	msgProfileUpdated  = "✅ Profile updated successfully!"
	msgAccountDeleted  = "🗑️ Account deleted successfully. We're sorry to see you go!"
	msgPasswordChanged = "🔒 Your password has been changed successfully!"
)

// Handler handles the signed-in user's profile endpoints.
type Handler struct {
	logger      *slog.Logger
	profiles    *profile.Service
	authService *auth.Service
}

// NewHandler creates a new profile handler.
func NewHandler(logger *slog.Logger, profiles *profile.Service, authService *auth.Service) *Handler {
	return &Handler{
		logger:      logger,
		profiles:    profiles,
		authService: authService,
	}
}

// ProfileResponse represents the user profile response.
type ProfileResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	EmailVerified bool   `json:"emailVerified"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

func newProfileResponse(u *domain.User) ProfileResponse {
	return ProfileResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		CreatedAt:     common.FormatTime(u.CreatedAt),
		UpdatedAt:     common.FormatTime(u.UpdatedAt),
	}
}

// UpdateRequest represents a profile update. Omitted fields are unchanged.
type UpdateRequest struct {
	Username  *string `json:"username,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// Validate checks the fields that were supplied.
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.NilOrNotEmpty.Error("Username cannot be blank"),
			validation.Length(3, 50).Error("Username must be between 3 and 50 characters")),
		validation.Field(&r.FirstName, validation.NilOrNotEmpty.Error("First name cannot be blank")),
		validation.Field(&r.LastName, validation.NilOrNotEmpty.Error("Last name cannot be blank")),
	)
}

// ChangePasswordRequest represents a password change by the signed-in user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Validate checks field presence.
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required.Error("Current password is required")),
		validation.Field(&r.NewPassword, validation.Required.Error("New password is required")),
	)
}

// GetMe returns the current user's profile.
// GET /profile
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, newProfileResponse(user))
}

// UpdateMe updates the current user's profile.
// PUT /profile
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	_, err := h.profiles.Update(r.Context(), userID, profile.UpdateInput{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.Message(w, http.StatusOK, msgProfileUpdated)
}

// DeleteMe deletes the current user's account and tasks.
// DELETE /profile
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	if err := h.profiles.Delete(r.Context(), userID); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.Message(w, http.StatusOK, msgAccountDeleted)
}

// ChangePassword replaces the current user's password.
// POST /profile/change-password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.Message(w, http.StatusOK, msgPasswordChanged)
}
