// Package task implements per-user task management.
package task

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/pkg/domain"
	"github.com/tendant/simple-todo/pkg/repository"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
)

// CreateInput is the data for a new task.
type CreateInput struct {
	Title       string
	Description *string
}

// Service manages tasks. Every operation is scoped to the owning user; a
// task owned by someone else is reported as domain.ErrTaskNotFound.
type Service struct {
	tasks  repository.TaskStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a task service.
func NewService(tasks repository.TaskStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: tasks, logger: logger, now: time.Now}
}

// List returns all of the user's tasks, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return s.tasks.List(ctx, userID, domain.TaskFilter{})
}

// Search returns tasks whose title or description contains query, ignoring
// case, optionally narrowed by completion status.
func (s *Service) Search(ctx context.Context, userID uuid.UUID, query string, completed *bool) ([]*domain.Task, error) {
	return s.tasks.List(ctx, userID, domain.TaskFilter{
		Query:     strings.TrimSpace(query),
		Completed: completed,
	})
}

// FilterByStatus returns the user's tasks with the given completion status.
func (s *Service) FilterByStatus(ctx context.Context, userID uuid.UUID, completed bool) ([]*domain.Task, error) {
	return s.tasks.List(ctx, userID, domain.TaskFilter{Completed: &completed})
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, userID, taskID)
}

// Create adds an incomplete task for the user.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateDescription(in.Description); err != nil {
		return nil, err
	}

	now := s.now()
	t := &domain.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       title,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "user_id", userID, "task_id", t.ID)
	return t, nil
}

// Update applies a partial update and returns the stored task.
func (s *Service) Update(ctx context.Context, userID, taskID uuid.UUID, in domain.TaskUpdate) (*domain.Task, error) {
	current, err := s.tasks.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	next := *current
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		next.Title = title
	}
	if in.Description != nil {
		if err := validateDescription(in.Description); err != nil {
			return nil, err
		}
		next.Description = in.Description
	}
	if in.Completed != nil {
		next.Completed = *in.Completed
	}
	next.UpdatedAt = s.now()

	if err := s.tasks.Update(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// ToggleCompletion flips the completed flag.
func (s *Service) ToggleCompletion(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	return s.tasks.ToggleCompleted(ctx, userID, taskID)
}

// Delete removes a task and returns it as it was before deletion.
func (s *Service) Delete(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	t, err := s.tasks.GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, userID, taskID); err != nil {
		return nil, err
	}
	s.logger.Info("task deleted", "user_id", userID, "task_id", taskID)
	return t, nil
}

func validateTitle(title string) error {
	if title == "" {
		return domain.NewValidationError("title", "Title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return domain.NewValidationError("title", "Title must be at most 200 characters")
	}
	return nil
}

func validateDescription(description *string) error {
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return domain.NewValidationError("description", "Description must be at most 2000 characters")
	}
	return nil
}
