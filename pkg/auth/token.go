package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tendant/simple-todo/pkg/domain"
)

const (
	// MinSecretLength is the shortest accepted HMAC signing secret, in bytes.
	MinSecretLength = 32

	refreshTokenLen = 32

	// Default token lifetimes
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrWeakSigningKey  = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	ErrInvalidTokenTTL = errors.New("refresh token ttl must exceed access token ttl")
)

// TokenConfig holds token signing configuration.
type TokenConfig struct {
	Secret          []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// AccessTokenClaims represents the claims in an access token.
// The subject is the user's email.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
}

// TokenSigner issues and validates stateless HS256 access tokens and opaque
// refresh tokens. It is safe for concurrent use.
type TokenSigner struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenSigner creates a signer. It refuses secrets shorter than
// MinSecretLength instead of falling back to a generated key.
func NewTokenSigner(cfg TokenConfig) (*TokenSigner, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, ErrWeakSigningKey
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if cfg.AccessTokenTTL < 0 || cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return nil, ErrInvalidTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	key := make([]byte, len(cfg.Secret))
	copy(key, cfg.Secret)

	return &TokenSigner{
		key:        key,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        cfg.Now,
	}, nil
}

// AccessTokenTTL returns the access token TTL.
func (s *TokenSigner) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (s *TokenSigner) RefreshTokenTTL() time.Duration {
	return s.refreshTTL
}

// IssueAccessToken signs an access token for user and returns it with its expiry.
func (s *TokenSigner) IssueAccessToken(user *domain.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)

	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserID: user.ID.String(),
		Email:  user.Email,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, expiresAt, nil
}

// IssueRefreshToken returns a new opaque refresh token and its expiry.
// Only its hash is persisted.
func (s *TokenSigner) IssueRefreshToken() (string, time.Time, error) {
	token, err := GenerateToken(refreshTokenLen)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, s.now().Add(s.refreshTTL), nil
}

// Validate reports whether token has a valid signature, is unexpired and was
// issued for expectedSubject.
func (s *TokenSigner) Validate(token, expectedSubject string) bool {
	claims, err := s.Claims(token)
	if err != nil {
		return false
	}
	return expectedSubject != "" && claims.Subject == expectedSubject
}

// Claims parses and fully validates an access token.
func (s *TokenSigner) Claims(token string) (*AccessTokenClaims, error) {
	return s.parse(token,
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
	)
}

// SubjectOf returns the subject of a correctly signed token, expired or not.
func (s *TokenSigner) SubjectOf(token string) (string, error) {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", domain.ErrInvalidToken
	}
	return claims.Subject, nil
}

// IsExpired reports whether a correctly signed token is past its expiry.
// Tokens that cannot be decoded count as expired.
func (s *TokenSigner) IsExpired(token string) bool {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil || claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.After(s.now())
}

func (s *TokenSigner) parse(tokenString string, opts ...jwt.ParserOption) (*AccessTokenClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}
