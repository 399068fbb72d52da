package service

import (
	"context"
	"time"

	"attendance-auth/internal/domain"
)

// Notifier is the fire-and-forget hook for security events. Implementations
// must never block or fail the authentication flow.
type Notifier interface {
	AccountLocked(ctx context.Context, a *domain.Account, until time.Time)
	TwoFactorEnrolled(ctx context.Context, a *domain.Account)
}
