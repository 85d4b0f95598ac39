package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task is a to-do item owned by a single user.
type Task struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Description *string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskFilter narrows a task listing. Nil fields do not filter.
type TaskFilter struct {
	Completed *bool
	// Query matches title or description, case-insensitive.
	Query string
}

// TaskUpdate holds a partial task update. Nil fields keep the current value.
type TaskUpdate struct {
	Title       *string
	Description *string
	Completed   *bool
}
