package common

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/internal/http/middleware"
	"github.com/tendant/simple-todo/internal/httputil"
	"github.com/tendant/simple-todo/pkg/domain"
)

// UserResponse is the account summary embedded in token responses.
type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Username      string `json:"username"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	EmailVerified bool   `json:"emailVerified"`
	CreatedAt     string `json:"createdAt"`
}

// NewUserResponse builds the summary of u.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:            u.ID.String(),
		Email:         u.Email,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		EmailVerified: u.EmailVerified,
		CreatedAt:     FormatTime(u.CreatedAt),
	}
}

// FormatTime renders timestamps the way every response body does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// RequireUserID returns the authenticated user's ID, writing a 401 when the
// request is anonymous.
func RequireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.WriteError(w, r, nil, domain.ErrAuthenticationRequired)
		return uuid.Nil, false
	}
	return userID, true
}
