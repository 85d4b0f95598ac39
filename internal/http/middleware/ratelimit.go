package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/simple-todo/internal/config"
	"github.com/tendant/simple-todo/internal/httputil"
)

// Rate limiter groups.
const (
	LimitAuth    = "auth"
	LimitReset   = "reset"
	LimitVerify  = "verify"
	LimitRefresh = "refresh"
	LimitProfile = "profile"
	LimitTasks   = "tasks"
)

// RateLimitConfig holds rate limiting configuration for one endpoint group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
	// PerUser keys authenticated requests by user ID instead of client IP.
	PerUser bool
}

// RateLimit creates a rate limiter middleware that answers 429 with the error envelope.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := httprate.KeyByIP
	if cfg.PerUser {
		keyFunc = keyByUserOrIP
	}

	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.WarnContext(r.Context(), "rate limit exceeded",
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
		}),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID, ok := GetUserID(r.Context()); ok {
		return "user:" + userID.String(), nil
	}
	return httprate.KeyByIP(r)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters builds one limiter per endpoint group.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	groups := []string{LimitAuth, LimitReset, LimitVerify, LimitRefresh, LimitProfile, LimitTasks}
	if !cfg.Enabled {
		limiters := make(map[string]func(http.Handler) http.Handler, len(groups))
		for _, g := range groups {
			limiters[g] = NoRateLimit()
		}
		return limiters
	}

	window := func(minutes int) time.Duration {
		return time.Duration(minutes) * time.Minute
	}

	return map[string]func(http.Handler) http.Handler{
		LimitAuth: RateLimit(RateLimitConfig{
			Requests: cfg.AuthRequestsPerMinute,
			Window:   window(cfg.AuthWindowMinutes),
			Logger:   logger,
		}),
		LimitReset: RateLimit(RateLimitConfig{
			Requests: cfg.ResetRequestsPerWindow,
			Window:   window(cfg.ResetWindowMinutes),
			Logger:   logger,
		}),
		LimitVerify: RateLimit(RateLimitConfig{
			Requests: cfg.VerifyRequestsPerWindow,
			Window:   window(cfg.VerifyWindowMinutes),
			Logger:   logger,
		}),
		LimitRefresh: RateLimit(RateLimitConfig{
			Requests: cfg.RefreshRequestsPerMinute,
			Window:   window(cfg.RefreshWindowMinutes),
			Logger:   logger,
		}),
		LimitProfile: RateLimit(RateLimitConfig{
			Requests: cfg.ProfileRequestsPerMinute,
			Window:   window(cfg.ProfileWindowMinutes),
			Logger:   logger,
			PerUser:  true,
		}),
		LimitTasks: RateLimit(RateLimitConfig{
			Requests: cfg.TasksRequestsPerMinute,
			Window:   window(cfg.TasksWindowMinutes),
			Logger:   logger,
			PerUser:  true,
		}),
	}
}
