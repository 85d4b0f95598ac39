package middleware

import (
	"context"
	"net/http"
	"strings"

	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/internal/httputil"
	"github.com/tendant/simple-todo/pkg/domain"
)

type contextKey string

// PrincipalKey is the context key for the authenticated principal.
const PrincipalKey contextKey = "principal"

// DefaultPublicPaths are the path prefixes served without authentication.
var DefaultPublicPaths = []string{"/auth/", "/health", "/error"}

// TokenVerifier decodes and validates access tokens.
type TokenVerifier interface {
	SubjectOf(token string) (string, error)
	Validate(token, expectedSubject string) bool
}

// IdentityLookup loads the identity named by a token subject.
type IdentityLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AuthConfig configures Authenticate.
type AuthConfig struct {
	Tokens      TokenVerifier
	Users       IdentityLookup
	PublicPaths []string
	Logger      *slog.Logger
}

// Authenticate resolves a bearer token into a principal on the request
// context. It never rejects: a missing, malformed or invalid token leaves the
// request anonymous, and RequireAuth rejects it later on protected routes.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	public := cfg.PublicPaths
	if public == nil {
		public = DefaultPublicPaths
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path, public) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			subject, err := cfg.Tokens.SubjectOf(token)
			if err != nil {
				logger.DebugContext(r.Context(), "bearer token rejected", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := ResolveIdentity(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := cfg.Users.GetByEmail(r.Context(), subject)
			if err != nil {
				logger.DebugContext(r.Context(), "token subject not resolved", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !cfg.Tokens.Validate(token, user.Email) {
				logger.DebugContext(r.Context(), "bearer token failed validation", "path", r.URL.Path, "user_id", user.ID)
				next.ServeHTTP(w, r)
				return
			}

			principal := domain.Principal{
				UserID:      user.ID,
				Email:       user.Email,
				Authorities: []string{domain.RoleUser},
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAuth rejects requests that carry no principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ResolveIdentity(r.Context()); !ok {
			httputil.WriteError(w, r, nil, domain.ErrAuthenticationRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// ResolveIdentity returns the principal attached to ctx, if any.
func ResolveIdentity(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(domain.Principal)
	return p, ok
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	p, ok := ResolveIdentity(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.UserID, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func isPublicPath(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
