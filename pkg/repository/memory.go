package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-todo/pkg/domain"
)

// MemoryStore keeps users and tasks in process memory. It is used by tests
// and by STORE_DRIVER=memory.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
	tasks map[uuid.UUID]*domain.Task
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[uuid.UUID]*domain.User),
		tasks: make(map[uuid.UUID]*domain.Task),
		now:   time.Now,
	}
}

// Users returns the user side of the store.
func (s *MemoryStore) Users() *MemoryUsers {
	return &MemoryUsers{s: s}
}

// Tasks returns the task side of the store.
func (s *MemoryStore) Tasks() *MemoryTasks {
	return &MemoryTasks{s: s}
}

// MemoryUsers implements UserStore over a MemoryStore.
type MemoryUsers struct {
	s *MemoryStore
}

var _ UserStore = (*MemoryUsers)(nil)

// Create stores a copy of user.
func (r *MemoryUsers) Create(ctx context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
		if u.Username == user.Username {
			return domain.ErrUsernameAlreadyExists
		}
	}
	r.s.users[user.ID] = user.Clone()
	return nil
}

// Delete removes a user.
func (r *MemoryUsers) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.s.users, id)
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

// GetByEmail retrieves a user by email.
func (r *MemoryUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

// GetByVerificationCode retrieves the user holding an outstanding verification code.
func (r *MemoryUsers) GetByVerificationCode(ctx context.Context, code string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool {
		return u.VerificationCode != nil && *u.VerificationCode == code
	})
}

// GetByResetCode retrieves the user holding an outstanding reset code.
func (r *MemoryUsers) GetByResetCode(ctx context.Context, code string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool {
		return u.ResetCode != nil && *u.ResetCode == code
	})
}

// GetByRefreshTokenHash retrieves the user whose active refresh token has the given hash.
func (r *MemoryUsers) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool {
		return u.RefreshTokenHash != nil && *u.RefreshTokenHash == hash
	})
}

// ExistsByEmail reports whether the email is taken.
func (r *MemoryUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

// ExistsByUsername reports whether the username is taken.
func (r *MemoryUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.find(func(u *domain.User) bool { return u.Username == username })
	return err == nil, nil
}

// UpdateLockout writes the lockout state if the failure count is unchanged.
func (r *MemoryUsers) UpdateLockout(ctx context.Context, id uuid.UUID, expected int, state domain.LockoutState) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	if u.FailedLoginAttempts != expected {
		return false, nil
	}
	next := u.Clone()
	next.FailedLoginAttempts = state.FailedLoginAttempts
	next.LockedUntil = copyTime(state.LockedUntil)
	next.UpdatedAt = r.s.now()
	r.s.users[id] = next
	return true, nil
}

// RotateRefreshToken swaps the refresh token hash if it still equals expectedHash.
func (r *MemoryUsers) RotateRefreshToken(ctx context.Context, id uuid.UUID, expectedHash string, newHash *string, expiresAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	if u.RefreshTokenHash == nil || *u.RefreshTokenHash != expectedHash {
		return false, nil
	}
	next := u.Clone()
	next.RefreshTokenHash = copyString(newHash)
	next.RefreshExpiresAt = copyTime(expiresAt)
	next.UpdatedAt = r.s.now()
	r.s.users[id] = next
	return true, nil
}

// UpdateProfile writes the username and display names.
func (r *MemoryUsers) UpdateProfile(ctx context.Context, id uuid.UUID, profile domain.Profile, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	for other, o := range r.s.users {
		if other != id && o.Username == profile.Username {
			return domain.ErrUsernameAlreadyExists
		}
	}
	r.s.users[id] = u.WithProfile(profile, now)
	return nil
}

// SetVerificationCode stores a new outstanding verification code.
func (r *MemoryUsers) SetVerificationCode(ctx context.Context, id uuid.UUID, code string, expiresAt, now time.Time) error {
	_, err := r.apply(id, func(u *domain.User) *domain.User {
		return u.WithVerificationCode(code, expiresAt, now)
	})
	return err
}

// MarkVerified verifies the email if code is still outstanding.
func (r *MemoryUsers) MarkVerified(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error) {
	return r.apply(id, func(u *domain.User) *domain.User {
		if u.VerificationCode == nil || *u.VerificationCode != code {
			return nil
		}
		return u.Verified(now)
	})
}

// SetResetCode stores a new outstanding reset code.
func (r *MemoryUsers) SetResetCode(ctx context.Context, id uuid.UUID, code string, expiresAt, now time.Time) error {
	_, err := r.apply(id, func(u *domain.User) *domain.User {
		return u.WithResetCode(code, expiresAt, now)
	})
	return err
}

// ConsumeResetCode replaces the password hash if code is still outstanding.
func (r *MemoryUsers) ConsumeResetCode(ctx context.Context, id uuid.UUID, code, passwordHash string, now time.Time) (bool, error) {
	return r.apply(id, func(u *domain.User) *domain.User {
		if u.ResetCode == nil || *u.ResetCode != code {
			return nil
		}
		return u.WithPassword(passwordHash, now)
	})
}

// ReplacePassword replaces the password hash if it is unchanged and revokes
// the refresh token.
func (r *MemoryUsers) ReplacePassword(ctx context.Context, id uuid.UUID, expectedHash, newHash string, now time.Time) (bool, error) {
	return r.apply(id, func(u *domain.User) *domain.User {
		if u.PasswordHash != expectedHash {
			return nil
		}
		next := u.WithPassword(newHash, now)
		next.RefreshTokenHash = nil
		next.RefreshExpiresAt = nil
		return next
	})
}

// RecordLogin stores the refresh token and clears the lockout state if the
// failure count is unchanged.
func (r *MemoryUsers) RecordLogin(ctx context.Context, id uuid.UUID, expectedAttempts int, refreshHash string, refreshExpiresAt, now time.Time) (bool, error) {
	return r.apply(id, func(u *domain.User) *domain.User {
		if u.FailedLoginAttempts != expectedAttempts {
			return nil
		}
		next := u.Clone()
		next.RefreshTokenHash = &refreshHash
		next.RefreshExpiresAt = &refreshExpiresAt
		next.FailedLoginAttempts = 0
		next.LockedUntil = nil
		next.UpdatedAt = now
		return next
	})
}

// apply replaces the stored user with change(u) under the write lock. A nil
// result leaves the user untouched and reports false.
func (r *MemoryUsers) apply(id uuid.UUID, change func(u *domain.User) *domain.User) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return false, domain.ErrUserNotFound
	}
	next := change(u)
	if next == nil {
		return false, nil
	}
	r.s.users[id] = next
	return true, nil
}

func (r *MemoryUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, u := range r.s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// MemoryTasks implements TaskStore over a MemoryStore.
type MemoryTasks struct {
	s *MemoryStore
}

var _ TaskStore = (*MemoryTasks)(nil)

// Create stores a copy of task.
func (r *MemoryTasks) Create(ctx context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.tasks[task.ID] = cloneTask(task)
	return nil
}

// Update replaces a task owned by task.UserID.
func (r *MemoryTasks) Update(ctx context.Context, task *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return domain.ErrTaskNotFound
	}
	r.s.tasks[task.ID] = cloneTask(task)
	return nil
}

// Delete removes a task owned by userID.
func (r *MemoryTasks) Delete(ctx context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.tasks[id]
	if !ok || existing.UserID != userID {
		return domain.ErrTaskNotFound
	}
	delete(r.s.tasks, id)
	return nil
}

// GetByID retrieves a task owned by userID.
func (r *MemoryTasks) GetByID(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// List returns the user's tasks matching filter, newest first.
func (r *MemoryTasks) List(ctx context.Context, userID uuid.UUID, filter domain.TaskFilter) ([]*domain.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query := strings.ToLower(filter.Query)
	tasks := []*domain.Task{}
	for _, t := range r.s.tasks {
		if t.UserID != userID {
			continue
		}
		if filter.Completed != nil && t.Completed != *filter.Completed {
			continue
		}
		if query != "" && !taskContains(t, query) {
			continue
		}
		tasks = append(tasks, cloneTask(t))
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// ToggleCompleted flips the completed flag of a task owned by userID.
func (r *MemoryTasks) ToggleCompleted(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrTaskNotFound
	}
	next := cloneTask(t)
	next.Completed = !next.Completed
	next.UpdatedAt = r.s.now()
	r.s.tasks[id] = next
	return cloneTask(next), nil
}

// DeleteByUserID removes every task owned by userID.
func (r *MemoryTasks) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, t := range r.s.tasks {
		if t.UserID == userID {
			delete(r.s.tasks, id)
		}
	}
	return nil
}

func taskContains(t *domain.Task, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(t.Title), lowerQuery) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), lowerQuery)
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.Description = copyString(t.Description)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
