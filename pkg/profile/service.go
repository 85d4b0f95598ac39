// Package profile manages the signed-in user's own account data.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/pkg/auth"
	"github.com/tendant/simple-todo/pkg/domain"
	"github.com/tendant/simple-todo/pkg/repository"
)

// UpdateInput holds a partial profile update. Nil fields keep the current value.
type UpdateInput struct {
	Username  *string
	FirstName *string
	LastName  *string
}

// Service reads and edits user profiles.
type Service struct {
	users  repository.UserStore
	tasks  repository.TaskStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a profile service.
func NewService(users repository.UserStore, tasks repository.TaskStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, tasks: tasks, logger: logger, now: time.Now}
}

// Get returns the user's profile.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Update applies in to the user's profile and returns the stored result.
func (s *Service) Update(ctx context.Context, userID uuid.UUID, in UpdateInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	next := user.Profile()

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := auth.ValidateUsername(username); err != nil {
			return nil, err
		}
		if username != user.Username {
			taken, err := s.users.ExistsByUsername(ctx, username)
			if err != nil {
				return nil, fmt.Errorf("check username: %w", err)
			}
			if taken {
				return nil, domain.ErrUsernameAlreadyExists
			}
			next.Username = username
		}
	}
	if in.FirstName != nil {
		next.FirstName = auth.CleanName(*in.FirstName)
	}
	if in.LastName != nil {
		next.LastName = auth.CleanName(*in.LastName)
	}

	if err := s.users.UpdateProfile(ctx, userID, next, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", "user_id", userID)
	return s.users.GetByID(ctx, userID)
}

// Delete removes the user and every task they own.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.tasks.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete tasks: %w", err)
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("profile deleted", "user_id", userID)
	return nil
}
