package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/pkg/domain"
	"github.com/tendant/simple-todo/pkg/repository"
)

const (
	// maxCodeDraws bounds redraws when a fresh code is already outstanding.
	maxCodeDraws = 5
	// maxLockoutRetries bounds compare-and-swap retries on the failure counter.
	maxLockoutRetries = 5
)

var (
	errCodeSpaceExhausted = errors.New("could not draw an unused code")
	errLockoutContention  = errors.New("failure counter kept changing")
)

// Mailer delivers account notifications. Verification and reset mails are
// required for their flows; the others are informational.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, name, code string) error
	SendPasswordResetEmail(ctx context.Context, to, name, code string) error
	SendWelcomeEmail(ctx context.Context, to, name string) error
	SendPasswordChangedEmail(ctx context.Context, to, name string) error
	SendAccountLockedEmail(ctx context.Context, to, name string, lockout time.Duration) error
}

// ServiceConfig holds orchestration settings.
type ServiceConfig struct {
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	MaxFailedAttempts    int
	LockoutDuration      time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// RegisterInput is the data needed to create an account.
type RegisterInput struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// Service runs the account lifecycle: registration, login with lockout,
// email verification, password reset and refresh token rotation.
type Service struct {
	users   repository.UserStore
	hasher  Hasher
	policy  *PasswordPolicy
	tokens  *TokenSigner
	codes   *CodeIssuer
	lockout LockoutPolicy
	mailer  Mailer
	logger  *slog.Logger

	verificationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

// NewService creates a new auth service.
func NewService(
	cfg ServiceConfig,
	users repository.UserStore,
	hasher Hasher,
	policy *PasswordPolicy,
	tokens *TokenSigner,
	mailer Mailer,
	logger *slog.Logger,
) *Service {
	if cfg.EmailVerificationTTL <= 0 {
		cfg.EmailVerificationTTL = DefaultEmailVerificationTTL
	}
	if cfg.PasswordResetTTL <= 0 {
		cfg.PasswordResetTTL = DefaultPasswordResetTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		users:           users,
		hasher:          hasher,
		policy:          policy,
		tokens:          tokens,
		codes:           NewCodeIssuer(),
		lockout:         NewLockoutPolicy(cfg.MaxFailedAttempts, cfg.LockoutDuration),
		mailer:          mailer,
		logger:          logger,
		verificationTTL: cfg.EmailVerificationTTL,
		resetTTL:        cfg.PasswordResetTTL,
		now:             cfg.Now,
	}
}

// Tokens returns the token signer used for access tokens.
func (s *Service) Tokens() *TokenSigner {
	return s.tokens
}

// VerificationTTL returns how long a verification code stays valid.
func (s *Service) VerificationTTL() time.Duration {
	return s.verificationTTL
}

// Register creates an unverified account and mails its verification code.
// If the mail cannot be sent the account is removed again so the caller can
// retry with the same email and username.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := NormalizeEmail(in.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(in.Username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := s.policy.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}
	exists, err = s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, domain.ErrUsernameAlreadyExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	code, expiresAt, err := s.issueCode(ctx, s.users.GetByVerificationCode, now, s.verificationTTL)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:                    uuid.New(),
		Email:                 email,
		Username:              username,
		PasswordHash:          hash,
		FirstName:             CleanName(in.FirstName),
		LastName:              CleanName(in.LastName),
		VerificationCode:      &code,
		VerificationExpiresAt: &expiresAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.FullName(), code); err != nil {
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to remove account after verification mail failure",
				"user_id", user.ID, "error", delErr)
		}
		return nil, fmt.Errorf("send verification email: %w: %w", domain.ErrEmailDelivery, err)
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and issues a token pair. Unknown email and wrong
// password both return domain.ErrInvalidCredentials. A wrong password is
// counted toward lockout before the error is returned.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if s.lockout.IsLocked(user.LockedUntil, now) {
		return nil, domain.ErrAccountLocked
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		if err := s.recordFailure(ctx, user, now); err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		return nil, domain.ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return nil, domain.ErrEmailNotVerified
	}

	access, accessExpiresAt, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, refreshExpiresAt, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshHash := HashToken(refresh)
	if err := s.recordLogin(ctx, user, refreshHash, refreshExpiresAt, now); err != nil {
		return nil, err
	}

	next := user.Clone()
	cleared := s.lockout.OnSuccess()
	next.FailedLoginAttempts = cleared.FailedLoginAttempts
	next.LockedUntil = cleared.LockedUntil
	next.RefreshTokenHash = &refreshHash
	next.RefreshExpiresAt = &refreshExpiresAt
	next.UpdatedAt = now

	s.logger.Info("user logged in", "user_id", user.ID)
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiresAt,
		User:         next,
	}, nil
}

// recordLogin stores the refresh token and clears the failure counter. When a
// concurrent failure moved the counter, the account is reloaded and rechecked
// so a lock set in the meantime is never cleared.
func (s *Service) recordLogin(ctx context.Context, user *domain.User, refreshHash string, refreshExpiresAt, now time.Time) error {
	current := user
	for attempt := 0; attempt < maxLockoutRetries; attempt++ {
		ok, err := s.users.RecordLogin(ctx, current.ID, current.FailedLoginAttempts, refreshHash, refreshExpiresAt, now)
		if err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		if ok {
			return nil
		}

		current, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
		if s.lockout.IsLocked(current.LockedUntil, now) {
			return domain.ErrAccountLocked
		}
	}
	return errLockoutContention
}

// recordFailure persists one more failed attempt with a compare-and-swap on
// the counter, reloading and retrying when a concurrent failure won.
func (s *Service) recordFailure(ctx context.Context, user *domain.User, now time.Time) error {
	current := user
	for attempt := 0; attempt < maxLockoutRetries; attempt++ {
		state := s.lockout.OnFailure(current.FailedLoginAttempts, now)
		ok, err := s.users.UpdateLockout(ctx, current.ID, current.FailedLoginAttempts, state)
		if err != nil {
			return err
		}
		if ok {
			if state.LockedUntil != nil {
				s.logger.Warn("account locked", "user_id", current.ID, "failed_attempts", state.FailedLoginAttempts)
				s.notify("account locked", current, func() error {
					return s.mailer.SendAccountLockedEmail(ctx, current.Email, current.FullName(), s.lockout.Duration)
				})
			}
			return nil
		}

		current, err = s.users.GetByID(ctx, user.ID)
		if err != nil {
			return err
		}
	}
	return errLockoutContention
}

// ForgotPassword stores a new reset code for the account and mails it.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}

	now := s.now()
	code, expiresAt, err := s.issueCode(ctx, s.users.GetByResetCode, now, s.resetTTL)
	if err != nil {
		return err
	}
	if err := s.users.SetResetCode(ctx, user.ID, code, expiresAt, now); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.FullName(), code); err != nil {
		return fmt.Errorf("send password reset email: %w: %w", domain.ErrEmailDelivery, err)
	}
	return nil
}

// ResetPassword replaces the password of the account holding code and
// consumes the code.
func (s *Service) ResetPassword(ctx context.Context, code, newPassword string) error {
	if !IsCodeFormat(code) {
		return domain.ErrInvalidResetCode
	}
	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByResetCode(ctx, code)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrInvalidResetCode
	}
	if err != nil {
		return err
	}

	now := s.now()
	if user.ResetExpiresAt == nil || !user.ResetExpiresAt.After(now) {
		return domain.ErrResetCodeExpired
	}
	if !s.codes.IsValid(user.ResetCode, user.ResetExpiresAt, code, now) {
		return domain.ErrInvalidResetCode
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	ok, err := s.users.ConsumeResetCode(ctx, user.ID, code, hash, now)
	if err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	if !ok {
		return domain.ErrInvalidResetCode
	}

	s.logger.Info("password reset", "user_id", user.ID)
	s.notify("password changed", user, func() error {
		return s.mailer.SendPasswordChangedEmail(ctx, user.Email, user.FullName())
	})
	return nil
}

// VerifyEmail marks the account holding code as verified and consumes the code.
func (s *Service) VerifyEmail(ctx context.Context, code string) error {
	if !IsCodeFormat(code) {
		return domain.ErrInvalidVerificationCode
	}

	user, err := s.users.GetByVerificationCode(ctx, code)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrInvalidVerificationCode
	}
	if err != nil {
		return err
	}

	now := s.now()
	if user.VerificationExpiresAt == nil || !user.VerificationExpiresAt.After(now) {
		return domain.ErrVerificationCodeExpired
	}
	if !s.codes.IsValid(user.VerificationCode, user.VerificationExpiresAt, code, now) {
		return domain.ErrInvalidVerificationCode
	}

	ok, err := s.users.MarkVerified(ctx, user.ID, code, now)
	if err != nil {
		return fmt.Errorf("store verification: %w", err)
	}
	if !ok {
		return domain.ErrInvalidVerificationCode
	}

	s.logger.Info("email verified", "user_id", user.ID)
	s.notify("welcome", user, func() error {
		return s.mailer.SendWelcomeEmail(ctx, user.Email, user.FullName())
	})
	return nil
}

// ResendVerification replaces the outstanding verification code and mails it.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return domain.ErrEmailAlreadyVerified
	}

	now := s.now()
	code, expiresAt, err := s.issueCode(ctx, s.users.GetByVerificationCode, now, s.verificationTTL)
	if err != nil {
		return err
	}
	if err := s.users.SetVerificationCode(ctx, user.ID, code, expiresAt, now); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.FullName(), code); err != nil {
		return fmt.Errorf("send verification email: %w: %w", domain.ErrEmailDelivery, err)
	}
	return nil
}

// RefreshToken exchanges an active refresh token for a new token pair. The
// presented token stops working even if two refreshes race; only one wins.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, domain.ErrInvalidRefreshToken
	}
	presented := HashToken(refreshToken)

	user, err := s.users.GetByRefreshTokenHash(ctx, presented)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if user.RefreshExpiresAt == nil || !user.RefreshExpiresAt.After(now) {
		return nil, domain.ErrRefreshTokenExpired
	}

	access, accessExpiresAt, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, refreshExpiresAt, err := s.tokens.IssueRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshHash := HashToken(refresh)

	ok, err := s.users.RotateRefreshToken(ctx, user.ID, presented, &refreshHash, &refreshExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidRefreshToken
	}

	next := user.Clone()
	next.RefreshTokenHash = &refreshHash
	next.RefreshExpiresAt = &refreshExpiresAt
	next.UpdatedAt = now

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpiresAt,
		User:         next,
	}, nil
}

// Logout clears the refresh token if it is the active one. It never fails;
// unknown tokens and store errors are logged and ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	presented := HashToken(refreshToken)

	user, err := s.users.GetByRefreshTokenHash(ctx, presented)
	if errors.Is(err, domain.ErrUserNotFound) {
		return
	}
	if err != nil {
		s.logger.Error("logout lookup failed", "error", err)
		return
	}

	if _, err := s.users.RotateRefreshToken(ctx, user.ID, presented, nil, nil); err != nil {
		s.logger.Error("logout failed to clear refresh token", "user_id", user.ID, "error", err)
		return
	}
	s.logger.Info("user logged out", "user_id", user.ID)
}

// ChangePassword replaces the password of a signed-in user after checking the
// current one. The stored refresh token is revoked.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return domain.ErrPasswordMismatch
	}
	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	ok, err := s.users.ReplacePassword(ctx, user.ID, user.PasswordHash, hash, s.now())
	if err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	if !ok {
		// The password changed since it was checked.
		return domain.ErrPasswordMismatch
	}

	s.logger.Info("password changed", "user_id", user.ID)
	s.notify("password changed", user, func() error {
		return s.mailer.SendPasswordChangedEmail(ctx, user.Email, user.FullName())
	})
	return nil
}

// issueCode draws codes until one is not outstanding on any account.
func (s *Service) issueCode(
	ctx context.Context,
	lookup func(context.Context, string) (*domain.User, error),
	now time.Time,
	ttl time.Duration,
) (string, time.Time, error) {
	for i := 0; i < maxCodeDraws; i++ {
		code, expiresAt, err := s.codes.Issue(now, ttl)
		if err != nil {
			return "", time.Time{}, err
		}
		_, err = lookup(ctx, code)
		if errors.Is(err, domain.ErrUserNotFound) {
			return code, expiresAt, nil
		}
		if err != nil {
			return "", time.Time{}, fmt.Errorf("check code: %w", err)
		}
	}
	return "", time.Time{}, errCodeSpaceExhausted
}

// notify sends an informational mail; failures are logged only.
func (s *Service) notify(kind string, user *domain.User, send func() error) {
	if err := send(); err != nil {
		s.logger.Warn("notification not sent", "kind", kind, "user_id", user.ID, "error", err)
	}
}
