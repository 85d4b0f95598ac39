package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Password hashers
const (
	HasherArgon2id = "argon2id"
	HasherBcrypt   = "bcrypt"
)

const minJWTSecretLength = 32

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string `env:"SERVER_ADDR" envDefault:"0.0.0.0"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StoreDriver       string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DBHost            string        `env:"DB_HOST" envDefault:"localhost"`
	DBPort            int           `env:"DB_PORT" envDefault:"5432"`
	DBUser            string        `env:"DB_USER" envDefault:"postgres"`
	DBPassword        string        `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName            string        `env:"DB_NAME" envDefault:"simple_todo"`
	DBSSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBAutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	MongoURI          string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB           string        `env:"MONGO_DB" envDefault:"simple_todo"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTIssuer       string        `env:"JWT_ISSUER" envDefault:"simple-todo"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Single-use codes
	EmailVerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"24h"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`

	// Lockout
	LockoutMaxAttempts int           `env:"LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	LockoutDuration    time.Duration `env:"LOCKOUT_DURATION" envDefault:"30m"`

	// Passwords
	PasswordHasher string `env:"PASSWORD_HASHER" envDefault:"argon2id"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"12"`
	PasswordPolicy PasswordPolicyConfig

	// Mail
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Simple Todo"`
	AppBaseURL   string `env:"APP_BASE_URL" envDefault:"http://localhost:3000"`

	// HTTP
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	RateLimit          RateLimitConfig
	SecurityHeaders    SecurityHeadersConfig
	Validation         ValidationConfig

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and X-Real-IP.
	// Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// PasswordPolicyConfig holds password complexity requirements.
type PasswordPolicyConfig struct {
	MinLength        int  `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	RequireUppercase bool `env:"PASSWORD_REQUIRE_UPPERCASE" envDefault:"false"`
	RequireLowercase bool `env:"PASSWORD_REQUIRE_LOWERCASE" envDefault:"false"`
	RequireNumber    bool `env:"PASSWORD_REQUIRE_NUMBER" envDefault:"false"`
	RequireSpecial   bool `env:"PASSWORD_REQUIRE_SPECIAL" envDefault:"false"`
}

// RateLimitConfig holds per-IP rate limits for each endpoint group.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	AuthRequestsPerMinute int `env:"RATE_LIMIT_AUTH_REQUESTS" envDefault:"10"`
	AuthWindowMinutes     int `env:"RATE_LIMIT_AUTH_WINDOW_MINUTES" envDefault:"1"`

	ResetRequestsPerWindow int `env:"RATE_LIMIT_RESET_REQUESTS" envDefault:"5"`
	ResetWindowMinutes     int `env:"RATE_LIMIT_RESET_WINDOW_MINUTES" envDefault:"15"`

	VerifyRequestsPerWindow int `env:"RATE_LIMIT_VERIFY_REQUESTS" envDefault:"10"`
	VerifyWindowMinutes     int `env:"RATE_LIMIT_VERIFY_WINDOW_MINUTES" envDefault:"15"`

	RefreshRequestsPerMinute int `env:"RATE_LIMIT_REFRESH_REQUESTS" envDefault:"30"`
	RefreshWindowMinutes     int `env:"RATE_LIMIT_REFRESH_WINDOW_MINUTES" envDefault:"1"`

	ProfileRequestsPerMinute int `env:"RATE_LIMIT_PROFILE_REQUESTS" envDefault:"60"`
	ProfileWindowMinutes     int `env:"RATE_LIMIT_PROFILE_WINDOW_MINUTES" envDefault:"1"`

	TasksRequestsPerMinute int `env:"RATE_LIMIT_TASKS_REQUESTS" envDefault:"120"`
	TasksWindowMinutes     int `env:"RATE_LIMIT_TASKS_WINDOW_MINUTES" envDefault:"1"`
}

// SecurityHeadersConfig holds response security header values. Empty values are not sent.
type SecurityHeadersConfig struct {
	Enabled            bool   `env:"SECURITY_HEADERS_ENABLED" envDefault:"true"`
	CSP                string `env:"SECURITY_HEADERS_CSP" envDefault:"default-src 'none'; frame-ancestors 'none'"`
	HSTSMaxAge         int    `env:"SECURITY_HEADERS_HSTS_MAX_AGE" envDefault:"31536000"`
	FrameOptions       string `env:"SECURITY_HEADERS_FRAME_OPTIONS" envDefault:"DENY"`
	ContentTypeOptions string `env:"SECURITY_HEADERS_CONTENT_TYPE_OPTIONS" envDefault:"nosniff"`
	XSSProtection      string `env:"SECURITY_HEADERS_XSS_PROTECTION" envDefault:"0"`
	ReferrerPolicy     string `env:"SECURITY_HEADERS_REFERRER_POLICY" envDefault:"no-referrer"`
	PermissionsPolicy  string `env:"SECURITY_HEADERS_PERMISSIONS_POLICY" envDefault:"geolocation=(), microphone=(), camera=()"`
}

// ValidationConfig holds request input limits.
type ValidationConfig struct {
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field rules.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.ServerPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.StoreDriver, validation.Required, validation.In(StorePostgres, StoreMongo, StoreMemory)),
		validation.Field(&c.JWTSecret, validation.Required, validation.Length(minJWTSecretLength, 0)),
		validation.Field(&c.AccessTokenTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RefreshTokenTTL, validation.Required, validation.Min(c.AccessTokenTTL+time.Second)),
		validation.Field(&c.EmailVerificationTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.PasswordResetTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.LockoutMaxAttempts, validation.Required, validation.Min(1)),
		validation.Field(&c.LockoutDuration, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.PasswordHasher, validation.Required, validation.In(HasherArgon2id, HasherBcrypt)),
		validation.Field(&c.SMTPFrom, validation.Required, is.Email),
		validation.Field(&c.AppBaseURL, validation.Required, is.URL),
	)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.StoreDriver {
	case StorePostgres:
		if c.DBHost == "" || c.DBName == "" {
			return errors.New("invalid config: DB_HOST and DB_NAME are required for the postgres store")
		}
	case StoreMongo:
		if c.MongoURI == "" || c.MongoDB == "" {
			return errors.New("invalid config: MONGO_URI and MONGO_DB are required for the mongo store")
		}
	}
	if c.PasswordPolicy.MinLength < 1 {
		return errors.New("invalid config: PASSWORD_MIN_LENGTH must be positive")
	}
	if c.Validation.MaxRequestBodySize <= 0 {
		return errors.New("invalid config: MAX_REQUEST_BODY_SIZE must be positive")
	}
	return nil
}

// HasSMTP returns true if an SMTP relay is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}
