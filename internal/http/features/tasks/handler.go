package tasks

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/tendant/simple-todo/internal/http/features/common"
	"github.com/tendant/simple-todo/internal/httputil"
	"github.com/tendant/simple-todo/pkg/domain"
	"github.com/tendant/simple-todo/pkg/task"
)

// Handler handles the task endpoints of the signed-in user.
type Handler struct {
	logger *slog.Logger
	tasks  *task.Service
}

// NewHandler creates a new task handler.
func NewHandler(logger *slog.Logger, tasks *task.Service) *Handler {
	return &Handler{logger: logger, tasks: tasks}
}

// TaskResponse is the JSON form of a task.
type TaskResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func newTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   common.FormatTime(t.CreatedAt),
		UpdatedAt:   common.FormatTime(t.UpdatedAt),
	}
}

// TasksResponse is the body of every listing endpoint.
type TasksResponse struct {
	Message    string         `json:"message"`
	Success    bool           `json:"success"`
	Tasks      []TaskResponse `json:"tasks"`
	TotalTasks int            `json:"totalTasks"`
}

// TaskResultResponse is the body of create, update and toggle.
type TaskResultResponse struct {
	Message string       `json:"message"`
	Success bool         `json:"success"`
	Task    TaskResponse `json:"task"`
}

// CreateRequest represents a new task.
type CreateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// Validate checks field presence and length.
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required.Error("Title is required"),
			validation.RuneLength(0, task.MaxTitleLength).Error("Title must be at most 200 characters")),
		validation.Field(&r.Description,
			validation.RuneLength(0, task.MaxDescriptionLength).Error("Description must be at most 2000 characters")),
	)
}

// UpdateRequest is a partial task update. Omitted fields are unchanged.
type UpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Validate checks the fields that were supplied.
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty.Error("Title cannot be blank"),
			validation.RuneLength(0, task.MaxTitleLength).Error("Title must be at most 200 characters")),
		validation.Field(&r.Description,
			validation.RuneLength(0, task.MaxDescriptionLength).Error("Description must be at most 2000 characters")),
	)
}

// List returns the user's tasks. The optional search and completed query
// parameters narrow the result.
// GET /tasks
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	completed, err := optionalBool(r, "completed")
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	var result []*domain.Task
	switch search := r.URL.Query().Get("search"); {
	case search != "":
		result, err = h.tasks.Search(r.Context(), userID, search, completed)
	case completed != nil:
		result, err = h.tasks.FilterByStatus(r.Context(), userID, *completed)
	default:
		result, err = h.tasks.List(r.Context(), userID)
	}
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	writeTasks(w, result)
}

// Search returns tasks matching a case-insensitive text query.
// GET /tasks/search?query=&completed=
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		query = r.URL.Query().Get("q")
	}
	if query == "" {
		httputil.WriteError(w, r, h.logger, domain.NewValidationError("query", "Query is required"))
		return
	}
	completed, err := optionalBool(r, "completed")
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	result, err := h.tasks.Search(r.Context(), userID, query, completed)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	writeTasks(w, result)
}

// Filter returns tasks with the given completion status.
// GET /tasks/filter?completed=
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	completed, err := optionalBool(r, "completed")
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	if completed == nil {
		httputil.WriteError(w, r, h.logger, domain.NewValidationError("completed", "Completed is required"))
		return
	}

	result, err := h.tasks.FilterByStatus(r.Context(), userID, *completed)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	writeTasks(w, result)
}

// Create adds a task.
// POST /tasks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	t, err := h.tasks.Create(r.Context(), userID, task.CreateInput{Title: req.Title, Description: req.Description})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, TaskResultResponse{
		Message: fmt.Sprintf("🎉 Task '%s' has been successfully created! Time to get things done!", t.Title),
		Success: true,
		Task:    newTaskResponse(t),
	})
}

// Get returns one task.
// GET /tasks/{taskID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.ids(w, r)
	if !ok {
		return
	}

	t, err := h.tasks.Get(r.Context(), userID, taskID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.JSON(w, http.StatusOK, newTaskResponse(t))
}

// Update applies a partial update.
// PUT /tasks/{taskID}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.ids(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	t, err := h.tasks.Update(r.Context(), userID, taskID, domain.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, TaskResultResponse{
		Message: fmt.Sprintf("✏️ Task '%s' has been successfully updated!", t.Title),
		Success: true,
		Task:    newTaskResponse(t),
	})
}

// ToggleCompletion flips a task's completed flag.
// PATCH /tasks/{taskID}/toggle-completion
func (h *Handler) ToggleCompletion(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.ids(w, r)
	if !ok {
		return
	}

	t, err := h.tasks.ToggleCompletion(r.Context(), userID, taskID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}

	msg := fmt.Sprintf("📝 Task '%s' has been marked as incomplete. Keep going!", t.Title)
	if t.Completed {
		msg = fmt.Sprintf("🎯 Great job! Task '%s' has been marked as completed!", t.Title)
	}
	httputil.JSON(w, http.StatusOK, TaskResultResponse{
		Message: msg,
		Success: true,
		Task:    newTaskResponse(t),
	})
}

// Delete removes a task.
// DELETE /tasks/{taskID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.ids(w, r)
	if !ok {
		return
	}

	t, err := h.tasks.Delete(r.Context(), userID, taskID)
	if err != nil {
		httputil.WriteError(w, r, h.logger, err)
		return
	}
	httputil.Message(w, http.StatusOK, fmt.Sprintf("🗑️ Task '%s' has been successfully deleted!", t.Title))
}

// ids resolves the caller and the task ID path parameter. A malformed task
// ID cannot name any task, so it is reported as not found.
func (h *Handler) ids(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := common.RequireUserID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httputil.WriteError(w, r, h.logger, domain.ErrTaskNotFound)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, taskID, true
}

func optionalBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.NewValidationError(name, "Must be true or false")
	}
	return &v, nil
}

func writeTasks(w http.ResponseWriter, list []*domain.Task) {
	items := make([]TaskResponse, 0, len(list))
	for _, t := range list {
		items = append(items, newTaskResponse(t))
	}

	msg := "📝 No tasks found! Ready to add your first task?"
	switch n := len(items); {
	case n == 1:
		msg = "✅ Successfully retrieved 1 task!"
	case n > 1:
		msg = fmt.Sprintf("✅ Successfully retrieved %d tasks!", n)
	}

	httputil.JSON(w, http.StatusOK, TasksResponse{
		Message:    msg,
		Success:    true,
		Tasks:      items,
		TotalTasks: len(items),
	})
}
