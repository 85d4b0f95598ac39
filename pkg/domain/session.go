package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is the access token expiry.
	ExpiresAt time.Time
	User      *User
}

// Principal is the identity attached to an authenticated request.
type Principal struct {
	UserID      uuid.UUID
	Email       string
	Authorities []string
}

// RoleUser is the only authority granted to authenticated users.
const RoleUser = "ROLE_USER"
