package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/simple-todo/internal/config"
	"github.com/tendant/simple-todo/internal/http/features/email"
	"github.com/tendant/simple-todo/internal/http/features/me"
	"github.com/tendant/simple-todo/internal/http/features/password"
	"github.com/tendant/simple-todo/internal/http/features/session"
	"github.com/tendant/simple-todo/internal/http/features/tasks"
	"github.com/tendant/simple-todo/internal/http/middleware"
	"github.com/tendant/simple-todo/internal/httputil"
	"github.com/tendant/simple-todo/pkg/auth"
	"github.com/tendant/simple-todo/pkg/profile"
	"github.com/tendant/simple-todo/pkg/task"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	ProfileService  *profile.Service
	TaskService     *task.Service
	Identities      middleware.IdentityLookup
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	Validation      config.ValidationConfig
	CORSOrigins     []string
	// TrustProxy rewrites RemoteAddr from X-Forwarded-For and X-Real-IP. Off,
	// rate limits key on the connection address so clients cannot pick their own.
	TrustProxy bool
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	if cfg.Validation.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSizeLimit(cfg.Validation.MaxRequestBodySize))
	}
	r.Use(middleware.Authenticate(middleware.AuthConfig{
		Tokens: cfg.AuthService.Tokens(),
		Users:  cfg.Identities,
		Logger: logger,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, HealthResponse{
			Status:    "UP",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, logger)

	passwordHandler := password.NewHandler(logger, cfg.AuthService)
	emailHandler := email.NewHandler(logger, cfg.AuthService)
	sessionHandler := session.NewHandler(logger, cfg.AuthService)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitAuth])
			r.Post("/register", passwordHandler.Register)
			r.Post("/login", passwordHandler.Login)
		})
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitReset])
			r.Post("/forgot-password", passwordHandler.ForgotPassword)
			r.Post("/reset-password", passwordHandler.ResetPassword)
		})
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitVerify])
			r.Post("/verify-email", emailHandler.VerifyEmail)
			r.Post("/resend-verification", emailHandler.ResendVerification)
		})
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.LimitRefresh])
			r.Post("/refresh-token", sessionHandler.Refresh)
			r.Post("/logout", sessionHandler.Logout)
		})
	})

	meHandler := me.NewHandler(logger, cfg.ProfileService, cfg.AuthService)
	r.Route("/profile", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(rateLimiters[middleware.LimitProfile])
		r.Get("/", meHandler.GetMe)
		r.Put("/", meHandler.UpdateMe)
		r.Delete("/", meHandler.DeleteMe)
		r.With(rateLimiters[middleware.LimitReset]).Post("/change-password", meHandler.ChangePassword)
	})

	taskHandler := tasks.NewHandler(logger, cfg.TaskService)
	r.Route("/tasks", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Use(rateLimiters[middleware.LimitTasks])
		r.Get("/", taskHandler.List)
		r.Post("/", taskHandler.Create)
		r.Get("/search", taskHandler.Search)
		r.Get("/filter", taskHandler.Filter)
		r.Get("/{taskID}", taskHandler.Get)
		r.Put("/{taskID}", taskHandler.Update)
		r.Patch("/{taskID}/toggle-completion", taskHandler.ToggleCompletion)
		r.Delete("/{taskID}", taskHandler.Delete)
	})

	if len(cfg.CORSOrigins) > 0 {
		return middleware.CORS(cfg.CORSOrigins)(r)
	}
	return r
}
