package auth

import (
	"time"

	"github.com/tendant/simple-todo/pkg/domain"
)

// Default lockout settings
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 30 * time.Minute
)

// LockoutPolicy is the state transition over a failure counter and a lock deadline.
// It holds no state of its own.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// NewLockoutPolicy creates a policy, using defaults for non-positive values.
func NewLockoutPolicy(threshold int, duration time.Duration) LockoutPolicy {
	if threshold <= 0 {
		threshold = DefaultMaxFailedAttempts
	}
	if duration <= 0 {
		duration = DefaultLockoutDuration
	}
	return LockoutPolicy{Threshold: threshold, Duration: duration}
}

// IsLocked reports whether lockedUntil is still in the future. An elapsed
// deadline is the same as no lock.
func (p LockoutPolicy) IsLocked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// OnFailure returns the state after one more failed password check.
func (p LockoutPolicy) OnFailure(failedAttempts int, now time.Time) domain.LockoutState {
	next := domain.LockoutState{FailedLoginAttempts: failedAttempts + 1}
	if next.FailedLoginAttempts >= p.Threshold {
		until := now.Add(p.Duration)
		next.LockedUntil = &until
	}
	return next
}

// OnSuccess returns the cleared state.
func (p LockoutPolicy) OnSuccess() domain.LockoutState {
	return domain.LockoutState{}
}
