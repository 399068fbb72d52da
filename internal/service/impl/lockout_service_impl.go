package impl

import (
	"context"
	"log/slog"
	"time"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/observability/metrics"
	"attendance-auth/internal/store"
)

type LockoutServiceImpl struct {
	store *store.Store
	now   func() time.Time
}

func NewLockoutService(st *store.Store) *LockoutServiceImpl {
	return &LockoutServiceImpl{store: st, now: time.Now}
}

func (l *LockoutServiceImpl) IsLocked(a *domain.Account, now time.Time) bool {
	return a.Locked(now)
}

// RecordFailure increments the failure counter under a per-account row lock.
// At or past the threshold the lock expiry is (re)set; the counter is left at
// its current value until a successful login or the periodic sweep clears it.
func (l *LockoutServiceImpl) RecordFailure(ctx context.Context, id domain.AccountID, policy domain.GlobalPolicy) (locked bool, until time.Time, err error) {
	err = l.store.WithTx(ctx, func(tx *store.Store) error {
		acc, err := tx.Accounts().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		acc.FailedLoginAttempts++
		if acc.FailedLoginAttempts >= policy.MaxLoginAttempts {
			t := l.now().UTC().Add(policy.LockoutDuration)
			acc.LockedUntil = &t
			locked = true
			until = t
		}
		return tx.Accounts().Save(ctx, acc)
	})
	if err != nil {
		// Never swallow: a silently skipped counter update would let an
		// attacker bypass the guard.
		return false, time.Time{}, err
	}
	if locked {
		metrics.AccountLockoutsTotal.WithLabelValues().Inc()
		slog.Info("account locked after repeated failures", "account_id", id, "until", until)
	}
	return locked, until, nil
}

func (l *LockoutServiceImpl) RecordSuccess(ctx context.Context, id domain.AccountID) error {
	return l.store.WithTx(ctx, func(tx *store.Store) error {
		acc, err := tx.Accounts().GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := l.now().UTC()
		acc.FailedLoginAttempts = 0
		acc.LockedUntil = nil
		acc.LastLoginAt = &now
		return tx.Accounts().Save(ctx, acc)
	})
}

// SweepExpiredLocks is driven by a ticker in main. It only touches accounts
// whose lock has already passed, which commutes with concurrent logins.
func (l *LockoutServiceImpl) SweepExpiredLocks(ctx context.Context) (int64, error) {
	n, err := l.store.Accounts().ClearExpiredLocks(ctx, l.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("cleared expired account locks", "accounts", n)
	}
	return n, nil
}
