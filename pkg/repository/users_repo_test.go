package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/simple-todo/pkg/domain"
)

func newUsersRepoWithMock(t *testing.T) (*UsersRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
	return NewUsersRepository(db), mock
}

var userRowColumns = []string{
	"id", "email", "username", "password_hash", "first_name", "last_name", "email_verified",
	"verification_code", "verification_expires_at", "reset_code", "reset_expires_at",
	"refresh_token_hash", "refresh_expires_at", "failed_login_attempts", "locked_until",
	"created_at", "updated_at",
}

func TestUsersRepository_Create(t *testing.T) {
	repo, mock := newUsersRepoWithMock(t)
	code := "123456"
	expires := time.Now().Add(24 * time.Hour)
	user := &domain.User{
		ID:                    uuid.New(),
		Email:                 "a@x.com",
		Username:              "alice",
		PasswordHash:          "$argon2id$...",
		FirstName:             "A",
		LastName:              "A",
		VerificationCode:      &code,
		VerificationExpiresAt: &expires,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+users\s*\(id,\s*email,\s*username,.*VALUES\s*\(\$1,.*\$11\)\s*$`).
		WithArgs(user.ID, "a@x.com", "alice", "$argon2id$...", "A", "A", false, "123456", expires, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create error: %v", err)
	}
}

func TestUsersRepository_CreateUniqueViolation(t *testing.T) {
	tests := []struct {
		constraint string
		want       error
	}{
		{"users_email_key", domain.ErrUserAlreadyExists},
		{"users_username_key", domain.ErrUsernameAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			repo, mock := newUsersRepoWithMock(t)

			mock.ExpectExec(`INSERT\s+INTO\s+users`).
				WillReturnError(&pq.Error{Code: "23505", Constraint: tt.constraint})

			err := repo.Create(context.Background(), &domain.User{ID: uuid.New()})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestUsersRepository_GetByEmail(t *testing.T) {
	repo, mock := newUsersRepoWithMock(t)
	id := uuid.New()
	now := time.Now()
	hash := "abc"

	rows := sqlmock.NewRows(userRowColumns).AddRow(
		id.String(), "a@x.com", "alice", "hash", "A", "B", true,
		nil, nil, nil, nil,
		hash, now, int64(2), nil,
		now, now,
	)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	got, err := repo.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got.ID != id || got.Username != "alice" || !got.EmailVerified {
		t.Errorf("unexpected user: %+v", got)
	}
	if got.RefreshTokenHash == nil || *got.RefreshTokenHash != "abc" {
		t.Errorf("RefreshTokenHash = %v, want abc", got.RefreshTokenHash)
	}
	if got.FailedLoginAttempts != 2 || got.LockedUntil != nil {
		t.Errorf("lockout = %d/%v, want 2/nil", got.FailedLoginAttempts, got.LockedUntil)
	}
}

func TestUsersRepository_GetNotFound(t *testing.T) {
	repo, mock := newUsersRepoWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+verification_code\s*=\s*\$1`).
		WithArgs("000000").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+reset_code\s*=\s*\$1`).
		WithArgs("000000").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+refresh_token_hash\s*=\s*\$1`).
		WithArgs("deadbeef").
		WillReturnError(errors.New("db down"))

	ctx := context.Background()
	if _, err := repo.GetByVerificationCode(ctx, "000000"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetByVerificationCode() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByResetCode(ctx, "000000"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetByResetCode() error = %v, want ErrUserNotFound", err)
	}
	_, err := repo.GetByRefreshTokenHash(ctx, "deadbeef")
	if err == nil || errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("GetByRefreshTokenHash() error = %v, want wrapped db error", err)
	}
}

// The field-group writes name every column they set, so a write in one flow
// cannot overwrite the refresh token or lockout state owned by another.
func TestUsersRepository_FieldGroupWrites(t *testing.T) {
	id := uuid.New()
	now := time.Now()
	expires := now.Add(time.Hour)

	tests := []struct {
		name     string
		query    string
		args     []driver.Value
		affected int64
		call     func(r *UsersRepository) (bool, error)
		want     bool
	}{
		{
			name:     "mark verified",
			query:    `(?s)UPDATE\s+users\s+SET\s+email_verified\s*=\s*TRUE,\s*verification_code\s*=\s*NULL,\s*verification_expires_at\s*=\s*NULL,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1\s+AND\s+verification_code\s*=\s*\$2`,
			args:     []driver.Value{id, "042917", now},
			affected: 1,
			call: func(r *UsersRepository) (bool, error) {
				return r.MarkVerified(context.Background(), id, "042917", now)
			},
			want: true,
		},
		{
			name:     "mark verified with a consumed code",
			query:    `UPDATE\s+users\s+SET\s+email_verified`,
			args:     []driver.Value{id, "042917", now},
			affected: 0,
			call: func(r *UsersRepository) (bool, error) {
				return r.MarkVerified(context.Background(), id, "042917", now)
			},
			want: false,
		},
		{
			name:     "consume reset code",
			query:    `(?s)UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$3,\s*reset_code\s*=\s*NULL,\s*reset_expires_at\s*=\s*NULL,\s*updated_at\s*=\s*\$4\s+WHERE\s+id\s*=\s*\$1\s+AND\s+reset_code\s*=\s*\$2`,
			args:     []driver.Value{id, "123456", "new-hash", now},
			affected: 1,
			call: func(r *UsersRepository) (bool, error) {
				return r.ConsumeResetCode(context.Background(), id, "123456", "new-hash", now)
			},
			want: true,
		},
		{
			name:     "replace password after a concurrent change",
			query:    `(?s)UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$3,.*refresh_token_hash\s*=\s*NULL,.*WHERE\s+id\s*=\s*\$1\s+AND\s+password_hash\s*=\s*\$2`,
			args:     []driver.Value{id, "old-hash", "new-hash", now},
			affected: 0,
			call: func(r *UsersRepository) (bool, error) {
				return r.ReplacePassword(context.Background(), id, "old-hash", "new-hash", now)
			},
			want: false,
		},
		{
			name:     "record login",
			query:    `(?s)UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\$3,\s*refresh_expires_at\s*=\s*\$4,\s*failed_login_attempts\s*=\s*0,\s*locked_until\s*=\s*NULL,\s*updated_at\s*=\s*\$5\s+WHERE\s+id\s*=\s*\$1\s+AND\s+failed_login_attempts\s*=\s*\$2`,
			args:     []driver.Value{id, 4, "refresh", expires, now},
			affected: 1,
			call: func(r *UsersRepository) (bool, error) {
				return r.RecordLogin(context.Background(), id, 4, "refresh", expires, now)
			},
			want: true,
		},
		{
			name:     "record login after a concurrent failure",
			query:    `UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\$3`,
			args:     []driver.Value{id, 4, "refresh", expires, now},
			affected: 0,
			call: func(r *UsersRepository) (bool, error) {
				return r.RecordLogin(context.Background(), id, 4, "refresh", expires, now)
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newUsersRepoWithMock(t)
			mock.ExpectExec(tt.query).
				WithArgs(tt.args...).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := tt.call(repo)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUsersRepository_SetCodes(t *testing.T) {
	repo, mock := newUsersRepoWithMock(t)
	id := uuid.New()
	now := time.Now()
	expires := now.Add(time.Hour)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+reset_code\s*=\s*\$2,\s*reset_expires_at\s*=\s*\$3,\s*updated_at\s*=\s*\$4\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs(id, "123456", expires, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+verification_code\s*=\s*\$2,\s*verification_expires_at\s*=\s*\$3,\s*updated_at\s*=\s*\$4\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs(id, "042917", expires, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.SetResetCode(ctx, id, "123456", expires, now); err != nil {
		t.Fatalf("SetResetCode error: %v", err)
	}
	if err := repo.SetVerificationCode(ctx, id, "042917", expires, now); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("SetVerificationCode() error = %v, want ErrUserNotFound", err)
	}
}

func TestUsersRepository_UpdateProfile(t *testing.T) {
	profile := domain.Profile{Username: "bob", FirstName: "B", LastName: "C"}
	query := `(?s)UPDATE\s+users\s+SET\s+username\s*=\s*\$2,\s*first_name\s*=\s*\$3,\s*last_name\s*=\s*\$4,\s*updated_at\s*=\s*\$5\s+WHERE\s+id\s*=\s*\$1\s*$`

	t.Run("not found", func(t *testing.T) {
		repo, mock := newUsersRepoWithMock(t)
		mock.ExpectExec(query).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateProfile(context.Background(), uuid.New(), profile, time.Now())
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("UpdateProfile() error = %v, want ErrUserNotFound", err)
		}
	})

	t.Run("username taken", func(t *testing.T) {
		repo, mock := newUsersRepoWithMock(t)
		mock.ExpectExec(query).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

		err := repo.UpdateProfile(context.Background(), uuid.New(), profile, time.Now())
		if !errors.Is(err, domain.ErrUsernameAlreadyExists) {
			t.Fatalf("UpdateProfile() error = %v, want ErrUsernameAlreadyExists", err)
		}
	})
}

func TestUsersRepository_UpdateLockout(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"count unchanged", 1, true},
		{"count moved", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newUsersRepoWithMock(t)
			id := uuid.New()
			until := time.Now().Add(30 * time.Minute)

			mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*\$3,\s*locked_until\s*=\s*\$4.*WHERE\s+id\s*=\s*\$1\s+AND\s+failed_login_attempts\s*=\s*\$2`).
				WithArgs(id, 4, 5, until).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.UpdateLockout(context.Background(), id, 4, domain.LockoutState{FailedLoginAttempts: 5, LockedUntil: &until})
			if err != nil {
				t.Fatalf("UpdateLockout error: %v", err)
			}
			if got != tt.want {
				t.Errorf("UpdateLockout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUsersRepository_RotateRefreshToken(t *testing.T) {
	repo, mock := newUsersRepoWithMock(t)
	id := uuid.New()

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\$3.*WHERE\s+id\s*=\s*\$1\s+AND\s+refresh_token_hash\s*=\s*\$2`).
		WithArgs(id, "old", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+refresh_token_hash`).
		WithArgs(id, "old", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.RotateRefreshToken(context.Background(), id, "old", nil, nil)
	if err != nil || !ok {
		t.Fatalf("first RotateRefreshToken() = %v, %v, want true, nil", ok, err)
	}
	ok, err = repo.RotateRefreshToken(context.Background(), id, "old", nil, nil)
	if err != nil || ok {
		t.Fatalf("second RotateRefreshToken() = %v, %v, want false, nil", ok, err)
	}
}

func TestUsersRepository_Exists(t *testing.T) {
	repo, mock := newUsersRepoWithMock(t)

	mock.ExpectQuery(`SELECT\s+EXISTS\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\)`).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT\s+EXISTS\(SELECT\s+1\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\)`).
		WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if ok, err := repo.ExistsByEmail(context.Background(), "a@x.com"); err != nil || !ok {
		t.Errorf("ExistsByEmail() = %v, %v, want true, nil", ok, err)
	}
	if ok, err := repo.ExistsByUsername(context.Background(), "bob"); err != nil || ok {
		t.Errorf("ExistsByUsername() = %v, %v, want false, nil", ok, err)
	}
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "todo", Password: "p@ss word", DBName: "todo"}
	want := "postgres://todo:p%40ss%20word@db:5432/todo?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
