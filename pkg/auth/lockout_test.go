package auth

import (
	"testing"
	"time"
)

func TestLockoutPolicy_LocksAtThreshold(t *testing.T) {
	policy := NewLockoutPolicy(5, 30*time.Minute)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	count := 0
	for i := 1; i <= 5; i++ {
		state := policy.OnFailure(count, now)
		count = state.FailedLoginAttempts

		if count != i {
			t.Fatalf("after %d failures count = %d", i, count)
		}
		if i < 5 {
			if state.LockedUntil != nil {
				t.Fatalf("after %d failures LockedUntil = %v, want nil", i, state.LockedUntil)
			}
			continue
		}
		if state.LockedUntil == nil {
			t.Fatal("after 5 failures LockedUntil = nil, want set")
		}
		if !state.LockedUntil.Equal(now.Add(30 * time.Minute)) {
			t.Errorf("LockedUntil = %v, want %v", state.LockedUntil, now.Add(30*time.Minute))
		}
		if !policy.IsLocked(state.LockedUntil, now) {
			t.Error("IsLocked() = false right after reaching the threshold")
		}
		if policy.IsLocked(state.LockedUntil, now.Add(30*time.Minute)) {
			t.Error("IsLocked() = true at the lock deadline, want false")
		}
	}
}

func TestLockoutPolicy_FailureAfterExpiredLockRelocks(t *testing.T) {
	policy := NewLockoutPolicy(3, time.Minute)
	now := time.Now()

	state := policy.OnFailure(3, now)
	if state.FailedLoginAttempts != 4 || state.LockedUntil == nil {
		t.Errorf("OnFailure(3) = %+v, want count 4 and a new lock", state)
	}
}

func TestLockoutPolicy_OnSuccess(t *testing.T) {
	policy := NewLockoutPolicy(5, 30*time.Minute)
	now := time.Now()

	for _, count := range []int{0, 1, 4, 5, 12} {
		_ = policy.OnFailure(count, now)
		state := policy.OnSuccess()
		if state.FailedLoginAttempts != 0 || state.LockedUntil != nil {
			t.Errorf("OnSuccess() after count %d = %+v, want zero state", count, state)
		}
	}
}

func TestLockoutPolicy_IsLocked(t *testing.T) {
	policy := NewLockoutPolicy(0, 0)
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	if policy.IsLocked(nil, now) {
		t.Error("IsLocked(nil) = true")
	}
	if policy.IsLocked(&past, now) {
		t.Error("IsLocked(past) = true")
	}
	if !policy.IsLocked(&future, now) {
		t.Error("IsLocked(future) = false")
	}
}

func TestNewLockoutPolicy_Defaults(t *testing.T) {
	policy := NewLockoutPolicy(0, -1)
	if policy.Threshold != DefaultMaxFailedAttempts {
		t.Errorf("Threshold = %d, want %d", policy.Threshold, DefaultMaxFailedAttempts)
	}
	if policy.Duration != DefaultLockoutDuration {
		t.Errorf("Duration = %v, want %v", policy.Duration, DefaultLockoutDuration)
	}
}
