package common

import "github.com/tendant/simple-todo/pkg/domain"

// TokenResponse is the body of a successful login or refresh.
type TokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         UserResponse `json:"user"`
	// ExpiresAt is the access token expiry in epoch milliseconds.
	ExpiresAt int64 `json:"expiresAt"`
}

// NewTokenResponse builds the response body for pair.
func NewTokenResponse(pair *domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         NewUserResponse(pair.User),
		ExpiresAt:    pair.ExpiresAt.UnixMilli(),
	}
}
