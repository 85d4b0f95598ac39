package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/pkg/domain"
	"github.com/tendant/simple-todo/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDocument struct {
	ID                    string     `bson:"_id"`
	Email                 string     `bson:"email"`
	Username              string     `bson:"username"`
	PasswordHash          string     `bson:"password_hash"`
	FirstName             string     `bson:"first_name"`
	LastName              string     `bson:"last_name"`
	EmailVerified         bool       `bson:"email_verified"`
	VerificationCode      *string    `bson:"verification_code,omitempty"`
	VerificationExpiresAt *time.Time `bson:"verification_expires_at,omitempty"`
	ResetCode             *string    `bson:"reset_code,omitempty"`
	ResetExpiresAt        *time.Time `bson:"reset_expires_at,omitempty"`
	RefreshTokenHash      *string    `bson:"refresh_token_hash,omitempty"`
	RefreshExpiresAt      *time.Time `bson:"refresh_expires_at,omitempty"`
	FailedLoginAttempts   int        `bson:"failed_login_attempts"`
	LockedUntil           *time.Time `bson:"locked_until,omitempty"`
	CreatedAt             time.Time  `bson:"created_at"`
	UpdatedAt             time.Time  `bson:"updated_at"`
}

func toUserDocument(u *domain.User) userDocument {
	return userDocument{
		ID:                    u.ID.String(),
		Email:                 u.Email,
		Username:              u.Username,
		PasswordHash:          u.PasswordHash,
		FirstName:             u.FirstName,
		LastName:              u.LastName,
		EmailVerified:         u.EmailVerified,
		VerificationCode:      u.VerificationCode,
		VerificationExpiresAt: u.VerificationExpiresAt,
		ResetCode:             u.ResetCode,
		ResetExpiresAt:        u.ResetExpiresAt,
		RefreshTokenHash:      u.RefreshTokenHash,
		RefreshExpiresAt:      u.RefreshExpiresAt,
		FailedLoginAttempts:   u.FailedLoginAttempts,
		LockedUntil:           u.LockedUntil,
		CreatedAt:             u.CreatedAt,
		UpdatedAt:             u.UpdatedAt,
	}
}

func (d userDocument) toDomain() (*domain.User, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("malformed user id %q: %w", d.ID, err)
	}
	return &domain.User{
		ID:                    id,
		Email:                 d.Email,
		Username:              d.Username,
		PasswordHash:          d.PasswordHash,
		FirstName:             d.FirstName,
		LastName:              d.LastName,
		EmailVerified:         d.EmailVerified,
		VerificationCode:      d.VerificationCode,
		VerificationExpiresAt: d.VerificationExpiresAt,
		ResetCode:             d.ResetCode,
		ResetExpiresAt:        d.ResetExpiresAt,
		RefreshTokenHash:      d.RefreshTokenHash,
		RefreshExpiresAt:      d.RefreshExpiresAt,
		FailedLoginAttempts:   d.FailedLoginAttempts,
		LockedUntil:           d.LockedUntil,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}, nil
}

// Users implements repository.UserStore on a MongoDB collection.
type Users struct {
	coll *mongo.Collection
}

var _ repository.UserStore = (*Users)(nil)

// NewUsers creates a user store on coll.
func NewUsers(coll *mongo.Collection) *Users {
	return &Users{coll: coll}
}

// Create inserts a new user.
func (s *Users) Create(ctx context.Context, user *domain.User) error {
	if _, err := s.coll.InsertOne(ctx, toUserDocument(user)); err != nil {
		return mapDuplicateKey(err)
	}
	return nil
}

// Delete removes a user.
func (s *Users) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// GetByID retrieves a user by ID.
func (s *Users) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

// GetByEmail retrieves a user by email.
func (s *Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// GetByVerificationCode retrieves the user holding an outstanding verification code.
func (s *Users) GetByVerificationCode(ctx context.Context, code string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"verification_code": code})
}

// GetByResetCode retrieves the user holding an outstanding reset code.
func (s *Users) GetByResetCode(ctx context.Context, code string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"reset_code": code})
}

// GetByRefreshTokenHash retrieves the user whose active refresh token has the given hash.
func (s *Users) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	return s.findOne(ctx, bson.M{"refresh_token_hash": hash})
}

// ExistsByEmail reports whether the email is taken.
func (s *Users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, bson.M{"email": email})
}

// ExistsByUsername reports whether the username is taken.
func (s *Users) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, bson.M{"username": username})
}

// UpdateLockout writes the lockout state if failed_login_attempts still equals expected.
func (s *Users) UpdateLockout(ctx context.Context, id uuid.UUID, expected int, state domain.LockoutState) (bool, error) {
	filter := bson.M{"_id": id.String(), "failed_login_attempts": expected}
	set := bson.M{"failed_login_attempts": state.FailedLoginAttempts, "updated_at": time.Now()}
	update := bson.M{"$set": set}
	if state.LockedUntil != nil {
		set["locked_until"] = *state.LockedUntil
	} else {
		update["$unset"] = bson.M{"locked_until": ""}
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongo error: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// RotateRefreshToken swaps the refresh token hash if it still equals expectedHash.
func (s *Users) RotateRefreshToken(ctx context.Context, id uuid.UUID, expectedHash string, newHash *string, expiresAt *time.Time) (bool, error) {
	filter := bson.M{"_id": id.String(), "refresh_token_hash": expectedHash}
	var update bson.M
	if newHash != nil {
		set := bson.M{"refresh_token_hash": *newHash, "updated_at": time.Now()}
		if expiresAt != nil {
			set["refresh_expires_at"] = *expiresAt
		}
		update = bson.M{"$set": set}
	} else {
		update = bson.M{
			"$set":   bson.M{"updated_at": time.Now()},
			"$unset": bson.M{"refresh_token_hash": "", "refresh_expires_at": ""},
		}
	}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongo error: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// UpdateProfile writes the username and display names.
func (s *Users) UpdateProfile(ctx context.Context, id uuid.UUID, profile domain.Profile, now time.Time) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"username":   profile.Username,
		"first_name": profile.FirstName,
		"last_name":  profile.LastName,
		"updated_at": now,
	}})
	if err != nil {
		return mapDuplicateKey(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetVerificationCode stores a new outstanding verification code.
func (s *Users) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt, now time.Time) error {
	return s.set(ctx, id, bson.M{
		"verification_code":       code,
		"verification_expires_at": expiresAt,
		"updated_at":              now,
	})
}

// MarkVerified verifies the email if code is still the outstanding verification code.
func (s *Users) MarkVerified(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error) {
	return s.swap(ctx, bson.M{"_id": id.String(), "verification_code": code}, bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": now},
		"$unset": bson.M{"verification_code": "", "verification_expires_at": ""},
	})
}

// SetResetCode stores a new outstanding reset code.
func (s *Users) SetResetCode(ctx context.Context, id uuid.UUID, code string, expiresAt, now time.Time) error {
	return s.set(ctx, id, bson.M{
		"reset_code":       code,
		"reset_expires_at": expiresAt,
		"updated_at":       now,
	})
}

// ConsumeResetCode replaces the password hash if code is still the outstanding reset code.
func (s *Users) ConsumeResetCode(ctx context.Context, id uuid.UUID, code, passwordHash string, now time.Time) (bool, error) {
	return s.swap(ctx, bson.M{"_id": id.String(), "reset_code": code}, bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "updated_at": now},
		"$unset": bson.M{"reset_code": "", "reset_expires_at": ""},
	})
}

// ReplacePassword swaps the password hash if it still equals expectedHash and
// revokes the refresh token.
func (s *Users) ReplacePassword(ctx context.Context, id uuid.UUID, expectedHash, newHash string, now time.Time) (bool, error) {
	return s.swap(ctx, bson.M{"_id": id.String(), "password_hash": expectedHash}, bson.M{
		"$set": bson.M{"password_hash": newHash, "updated_at": now},
		"$unset": bson.M{
			"reset_code": "", "reset_expires_at": "",
			"refresh_token_hash": "", "refresh_expires_at": "",
		},
	})
}

// RecordLogin stores the refresh token and clears the lockout state if
// failed_login_attempts still equals expectedAttempts.
func (s *Users) RecordLogin(ctx context.Context, id uuid.UUID, expectedAttempts int, refreshHash string, refreshExpiresAt, now time.Time) (bool, error) {
	return s.swap(ctx, bson.M{"_id": id.String(), "failed_login_attempts": expectedAttempts}, bson.M{
		"$set": bson.M{
			"refresh_token_hash":    refreshHash,
			"refresh_expires_at":    refreshExpiresAt,
			"failed_login_attempts": 0,
			"updated_at":            now,
		},
		"$unset": bson.M{"locked_until": ""},
	})
}

func (s *Users) set(ctx context.Context, id uuid.UUID, fields bson.M) error {
	ok, err := s.swap(ctx, bson.M{"_id": id.String()}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *Users) swap(ctx context.Context, filter, update bson.M) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongo error: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Users) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.toDomain()
}

func (s *Users) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("mongo error: %w", err)
	}
	return n > 0, nil
}

func mapDuplicateKey(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo error: %w", err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, usersEmailIndex):
		return domain.ErrUserAlreadyExists
	case strings.Contains(msg, usersUsernameIndex):
		return domain.ErrUsernameAlreadyExists
	default:
		return fmt.Errorf("mongo error: %w", err)
	}
}
