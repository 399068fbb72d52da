package service

import (
	"context"
	"time"

	"attendance-auth/internal/domain"
)

// LockoutService tracks failed attempts per account and computes lock
// decisions. All mutations are persisted atomically per account.
type LockoutService interface {
	// IsLocked reports whether a lock exists and is strictly in the future.
	IsLocked(a *domain.Account, now time.Time) bool

	// RecordFailure increments the counter; when it reaches the threshold the
	// lock expiry is set and the counter is left as-is.
	RecordFailure(ctx context.Context, id domain.AccountID, policy domain.GlobalPolicy) (locked bool, until time.Time, err error)

	// RecordSuccess resets the counter, clears the lock and stamps the last
	// successful login.
	RecordSuccess(ctx context.Context, id domain.AccountID) error

	// SweepExpiredLocks clears counters and expiries for accounts whose lock
	// has passed. Safe to run concurrently with login traffic.
	SweepExpiredLocks(ctx context.Context) (int64, error)
}
