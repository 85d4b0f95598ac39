package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/pkg/domain"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, email_verified,
		       verification_code, verification_expires_at, reset_code, reset_expires_at,
		       refresh_token_hash, refresh_expires_at, failed_login_attempts, locked_until,
		       created_at, updated_at`

// UsersRepository handles user persistence in Postgres.
type UsersRepository struct {
	db *sql.DB
}

var _ UserStore = (*UsersRepository)(nil)

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create creates a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, first_name, last_name, email_verified,
		                   verification_code, verification_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		user.EmailVerified, user.VerificationCode, user.VerificationExpiresAt,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapUserConstraint(err)
	}
	return nil
}

// Delete removes a user. Tasks go with it through the foreign key.
func (r *UsersRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, domain.ErrUserNotFound)
}

// GetByID retrieves a user by ID.
func (r *UsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByVerificationCode retrieves the user holding an outstanding verification code.
func (r *UsersRepository) GetByVerificationCode(ctx context.Context, code string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE verification_code = $1`, code)
}

// GetByResetCode retrieves the user holding an outstanding reset code.
func (r *UsersRepository) GetByResetCode(ctx context.Context, code string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE reset_code = $1`, code)
}

// GetByRefreshTokenHash retrieves the user whose active refresh token has the given hash.
func (r *UsersRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE refresh_token_hash = $1`, hash)
}

// ExistsByEmail checks if an email is already taken.
func (r *UsersRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// ExistsByUsername checks if a username is already taken.
func (r *UsersRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// UpdateLockout writes the lockout state if failed_login_attempts still equals expected.
func (r *UsersRepository) UpdateLockout(ctx context.Context, id uuid.UUID, expected int, state domain.LockoutState) (bool, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = $3, locked_until = $4, updated_at = NOW()
		WHERE id = $1 AND failed_login_attempts = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, expected, state.FailedLoginAttempts, state.LockedUntil)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return swapped(result)
}

// RotateRefreshToken swaps the refresh token hash if it still equals expectedHash.
func (r *UsersRepository) RotateRefreshToken(ctx context.Context, id uuid.UUID, expectedHash string, newHash *string, expiresAt *time.Time) (bool, error) {
	query := `
		UPDATE users
		SET refresh_token_hash = $3, refresh_expires_at = $4, updated_at = NOW()
		WHERE id = $1 AND refresh_token_hash = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, expectedHash, newHash, expiresAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return swapped(result)
}

// UpdateProfile writes the username and display names.
func (r *UsersRepository) UpdateProfile(ctx context.Context, id uuid.UUID, profile domain.Profile, now time.Time) error {
	query := `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, profile.Username, profile.FirstName, profile.LastName, now)
	if err != nil {
		return mapUserConstraint(err)
	}
	return expectOneRow(result, domain.ErrUserNotFound)
}

// SetVerificationCode stores a new outstanding verification code.
func (r *UsersRepository) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt, now time.Time) error {
	query := `
		UPDATE users
		SET verification_code = $2, verification_expires_at = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, code, expiresAt, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(result, domain.ErrUserNotFound)
}

// MarkVerified verifies the email if code is still the outstanding verification code.
func (r *UsersRepository) MarkVerified(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET email_verified = TRUE, verification_code = NULL, verification_expires_at = NULL, updated_at = $3
		WHERE id = $1 AND verification_code = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, code, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return swapped(result)
}

// SetResetCode stores a new outstanding reset code.
func (r *UsersRepository) SetResetCode(ctx context.Context, id uuid.UUID, code string, expiresAt, now time.Time) error {
	query := `
		UPDATE users
		SET reset_code = $2, reset_expires_at = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, code, expiresAt, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(result, domain.ErrUserNotFound)
}

// ConsumeResetCode replaces the password hash if code is still the outstanding reset code.
func (r *UsersRepository) ConsumeResetCode(ctx context.Context, id uuid.UUID, code, passwordHash string, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = $3, reset_code = NULL, reset_expires_at = NULL, updated_at = $4
		WHERE id = $1 AND reset_code = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, code, passwordHash, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return swapped(result)
}

// ReplacePassword swaps the password hash if it still equals expectedHash and
// revokes the refresh token.
func (r *UsersRepository) ReplacePassword(ctx context.Context, id uuid.UUID, expectedHash, newHash string, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET password_hash = $3, reset_code = NULL, reset_expires_at = NULL,
		    refresh_token_hash = NULL, refresh_expires_at = NULL, updated_at = $4
		WHERE id = $1 AND password_hash = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, expectedHash, newHash, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return swapped(result)
}

// RecordLogin stores the refresh token and clears the lockout state if
// failed_login_attempts still equals expectedAttempts.
func (r *UsersRepository) RecordLogin(ctx context.Context, id uuid.UUID, expectedAttempts int, refreshHash string, refreshExpiresAt, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET refresh_token_hash = $3, refresh_expires_at = $4,
		    failed_login_attempts = 0, locked_until = NULL, updated_at = $5
		WHERE id = $1 AND failed_login_attempts = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, expectedAttempts, refreshHash, refreshExpiresAt, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return swapped(result)
}

func (r *UsersRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.EmailVerified, &user.VerificationCode, &user.VerificationExpiresAt,
		&user.ResetCode, &user.ResetExpiresAt, &user.RefreshTokenHash, &user.RefreshExpiresAt,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func swapped(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
