package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/pkg/domain"
)

// UserStore persists users. Lookups that match nothing return
// domain.ErrUserNotFound.
type UserStore interface {
	// Create inserts a user. A taken email or username returns
	// domain.ErrUserAlreadyExists or domain.ErrUsernameAlreadyExists.
	Create(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id uuid.UUID) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByVerificationCode(ctx context.Context, code string) (*domain.User, error)
	GetByResetCode(ctx context.Context, code string) (*domain.User, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.User, error)

	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// UpdateLockout writes state only if the stored failure count still equals
	// expected. It reports whether the write happened.
	UpdateLockout(ctx context.Context, id uuid.UUID, expected int, state domain.LockoutState) (bool, error)

	// RotateRefreshToken replaces the stored refresh token hash only if it
	// still equals expectedHash. A nil newHash clears the token. It reports
	// whether the swap happened.
	RotateRefreshToken(ctx context.Context, id uuid.UUID, expectedHash string, newHash *string, expiresAt *time.Time) (bool, error)

	// The writes below touch only their own field group. Methods reporting a
	// bool apply only while the guarded column still holds the expected value.

	// UpdateProfile writes the username and display names. A taken username
	// returns domain.ErrUsernameAlreadyExists.
	UpdateProfile(ctx context.Context, id uuid.UUID, profile domain.Profile, now time.Time) error

	// SetVerificationCode stores a new outstanding verification code.
	SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt, now time.Time) error

	// MarkVerified sets email_verified and consumes code if it is still the
	// outstanding verification code.
	MarkVerified(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error)

	// SetResetCode stores a new outstanding reset code.
	SetResetCode(ctx context.Context, id uuid.UUID, code string, expiresAt, now time.Time) error

	// ConsumeResetCode replaces the password hash and consumes code if it is
	// still the outstanding reset code.
	ConsumeResetCode(ctx context.Context, id uuid.UUID, code, passwordHash string, now time.Time) (bool, error)

	// ReplacePassword replaces the password hash if it still equals
	// expectedHash, and revokes the refresh token and any reset code.
	ReplacePassword(ctx context.Context, id uuid.UUID, expectedHash, newHash string, now time.Time) (bool, error)

	// RecordLogin stores the new refresh token and clears the lockout state if
	// the failure count still equals expectedAttempts.
	RecordLogin(ctx context.Context, id uuid.UUID, expectedAttempts int, refreshHash string, refreshExpiresAt, now time.Time) (bool, error)
}

// TaskStore persists tasks. Every operation is scoped to the owning user;
// tasks of other users are reported as domain.ErrTaskNotFound.
type TaskStore interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, userID, id uuid.UUID) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error)
	List(ctx context.Context, userID uuid.UUID, filter domain.TaskFilter) ([]*domain.Task, error)
	// ToggleCompleted flips the completed flag atomically and returns the result.
	ToggleCompleted(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
