package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUser_IsLocked(t *testing.T) {
	now := time.Now()
	past := now.Add(-1 * time.Hour)
	future := now.Add(1 * time.Hour)

	tests := []struct {
		name        string
		lockedUntil *time.Time
		want        bool
	}{
		{
			name:        "never locked",
			lockedUntil: nil,
			want:        false,
		},
		{
			name:        "lock expired",
			lockedUntil: &past,
			want:        false,
		},
		{
			name:        "lock in future",
			lockedUntil: &future,
			want:        true,
		},
		{
			name:        "lock ends exactly now",
			lockedUntil: &now,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &User{ID: uuid.New(), LockedUntil: tt.lockedUntil}
			if got := user.IsLocked(now); got != tt.want {
				t.Errorf("IsLocked() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUser_CopyOnWrite(t *testing.T) {
	now := time.Now()
	user := &User{ID: uuid.New(), Email: "a@x.com", PasswordHash: "old"}

	withCode := user.WithVerificationCode("012345", now.Add(24*time.Hour), now)
	if user.VerificationCode != nil {
		t.Fatal("WithVerificationCode modified the original record")
	}
	if withCode.VerificationCode == nil || *withCode.VerificationCode != "012345" {
		t.Fatalf("VerificationCode = %v, want 012345", withCode.VerificationCode)
	}

	verified := withCode.Verified(now)
	if !verified.EmailVerified {
		t.Error("Verified() did not set EmailVerified")
	}
	if verified.VerificationCode != nil || verified.VerificationExpiresAt != nil {
		t.Error("Verified() did not clear the verification code")
	}
	if withCode.EmailVerified {
		t.Error("Verified() modified the previous version")
	}

	reset := user.WithResetCode("999999", now.Add(time.Hour), now).WithPassword("new", now)
	if reset.PasswordHash != "new" {
		t.Errorf("PasswordHash = %q, want %q", reset.PasswordHash, "new")
	}
	if reset.ResetCode != nil || reset.ResetExpiresAt != nil {
		t.Error("WithPassword() did not clear the reset code")
	}
	if user.PasswordHash != "old" {
		t.Error("WithPassword() modified the original record")
	}
}

func TestUser_FullName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{"first and last", User{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}, "Ada Lovelace"},
		{"first only", User{FirstName: "Ada", Username: "ada"}, "Ada"},
		{"username fallback", User{Username: "ada"}, "ada"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}
