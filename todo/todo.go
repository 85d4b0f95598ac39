// Package todo wires the task tracker's stores, authentication and HTTP
// routes into one embeddable instance.
//
// Basic usage with the in-memory stores:
//
//	store := repository.NewMemoryStore()
//	app, err := todo.New(todo.Config{
//	    Users:     store.Users(),
//	    Tasks:     store.Tasks(),
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", app.Handler())
//
// With Postgres, run the embedded migrations first:
//
//	db, _ := repository.NewDB(repository.Config{Host: "localhost", Port: 5432, ...})
//	_ = repository.Migrate(ctx, db)
//	app, err := todo.New(todo.Config{
//	    Users:     repository.NewUsersRepository(db),
//	    Tasks:     repository.NewTasksRepository(db),
//	    JWTSecret: os.Getenv("JWT_SECRET"),
//	})
package todo

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/internal/config"
	httpserver "github.com/tendant/simple-todo/internal/http"
	"github.com/tendant/simple-todo/internal/http/middleware"
	"github.com/tendant/simple-todo/internal/notification"
	"github.com/tendant/simple-todo/pkg/auth"
	"github.com/tendant/simple-todo/pkg/profile"
	"github.com/tendant/simple-todo/pkg/repository"
	"github.com/tendant/simple-todo/pkg/task"
)

// Config holds the configuration for a task tracker instance.
type Config struct {
	// Users and Tasks are the backing stores (required).
	Users repository.UserStore
	Tasks repository.TaskStore

	// JWTSecret is the secret key for signing access tokens (required, min 32 bytes).
	JWTSecret string

	// JWTIssuer is the issuer claim in access tokens (default: "simple-todo").
	JWTIssuer string

	// AccessTokenTTL is the lifetime of access tokens (default: 15 minutes).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens (default: 7 days).
	RefreshTokenTTL time.Duration

	// EmailVerificationTTL and PasswordResetTTL bound the mailed codes
	// (defaults: 24 hours and 1 hour).
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration

	// MaxFailedAttempts and LockoutDuration configure login lockout
	// (defaults: 5 attempts, 30 minutes).
	MaxFailedAttempts int
	LockoutDuration   time.Duration

	// Hasher hashes passwords (default: argon2id, verifying bcrypt too).
	Hasher auth.Hasher

	// PasswordPolicy is applied on register, reset and change (default: 8 characters minimum).
	PasswordPolicy *auth.PasswordPolicy

	// Mailer delivers codes and notices (default: logs instead of sending).
	Mailer auth.Mailer

	// HTTP behaviour. The zero values disable rate limiting, security
	// headers, body limits and CORS.
	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CORSOrigins     []string

	// TrustProxyHeaders keys rate limits and logs on the forwarded client IP
	// instead of the connection address.
	TrustProxyHeaders bool

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// App is a configured task tracker instance.
type App struct {
	config   Config
	auth     *auth.Service
	profiles *profile.Service
	tasks    *task.Service
	handler  http.Handler
}

// New creates an instance from cfg. It fails if a required field is missing
// or the signing secret is too weak.
func New(cfg Config) (*App, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}

	signer, err := auth.NewTokenSigner(auth.TokenConfig{
		Secret:          []byte(cfg.JWTSecret),
		Issuer:          cfg.JWTIssuer,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("todo: %w", err)
	}

	authService := auth.NewService(
		auth.ServiceConfig{
			EmailVerificationTTL: cfg.EmailVerificationTTL,
			PasswordResetTTL:     cfg.PasswordResetTTL,
			MaxFailedAttempts:    cfg.MaxFailedAttempts,
			LockoutDuration:      cfg.LockoutDuration,
		},
		cfg.Users,
		cfg.Hasher,
		cfg.PasswordPolicy,
		signer,
		cfg.Mailer,
		cfg.Logger,
	)
	profiles := profile.NewService(cfg.Users, cfg.Tasks, cfg.Logger)
	tasks := task.NewService(cfg.Tasks, cfg.Logger)

	handler := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          cfg.Logger,
		AuthService:     authService,
		ProfileService:  profiles,
		TaskService:     tasks,
		Identities:      cfg.Users,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		Validation:      cfg.Validation,
		CORSOrigins:     cfg.CORSOrigins,
		TrustProxy:      cfg.TrustProxyHeaders,
	})

	return &App{
		config:   cfg,
		auth:     authService,
		profiles: profiles,
		tasks:    tasks,
		handler:  handler,
	}, nil
}

// Handler returns the HTTP handler serving /auth, /profile, /tasks and /health.
//
//	mux := http.NewServeMux()
//	mux.Handle("/api/", http.StripPrefix("/api", app.Handler()))
func (a *App) Handler() http.Handler {
	return a.handler
}

// AuthService returns the authentication service for advanced usage.
func (a *App) AuthService() *auth.Service {
	return a.auth
}

// TaskService returns the task service.
func (a *App) TaskService() *task.Service {
	return a.tasks
}

// AuthMiddleware returns middleware that resolves bearer tokens into a
// principal. It never rejects; combine it with RequireAuth to protect
// your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(app.AuthMiddleware(), todo.RequireAuth)
//	    r.Get("/protected", handler)
//	})
func (a *App) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Authenticate(middleware.AuthConfig{
		Tokens:      a.auth.Tokens(),
		Users:       a.config.Users,
		PublicPaths: []string{},
		Logger:      a.config.Logger,
	})
}

// RequireAuth rejects anonymous requests with a 401 error envelope.
func RequireAuth(next http.Handler) http.Handler {
	return middleware.RequireAuth(next)
}

// GetUserID extracts the authenticated user ID from a request.
// Use after AuthMiddleware:
//
//	userID, ok := todo.GetUserID(r)
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	return middleware.GetUserID(r.Context())
}

func validateConfig(cfg *Config) error {
	if cfg.Users == nil || cfg.Tasks == nil {
		return errors.New("todo: Users and Tasks stores are required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("todo: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("todo: JWTSecret must be at least %d characters", auth.MinSecretLength)
	}
	return nil
}

func applyDefaults(cfg *Config) error {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "simple-todo"
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL == 0 {
		cfg.RefreshTokenTTL = auth.DefaultRefreshTokenTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Hasher == nil {
		passwords, err := auth.NewPasswords(auth.AlgorithmArgon2id, 0)
		if err != nil {
			return fmt.Errorf("todo: %w", err)
		}
		cfg.Hasher = passwords
	}
	if cfg.PasswordPolicy == nil {
		cfg.PasswordPolicy = &auth.PasswordPolicy{MinLength: 8}
	}
	if cfg.Mailer == nil {
		cfg.Mailer = notification.NewLogMailer(cfg.Logger)
	}
	return nil
}
