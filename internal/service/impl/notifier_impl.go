package impl

import (
	"context"
	"log/slog"
	"time"

	"attendance-auth/internal/domain"
)

// LogNotifier stands in for the email/SMS/push collaborators, which are
// opaque external services. Delivery failure must never block or fail the
// authentication flow, so the methods only ever log.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) AccountLocked(ctx context.Context, a *domain.Account, until time.Time) {
	n.log.Warn("security event: account locked",
		"account_id", a.ID, "email", a.Email, "locked_until", until)
}

func (n *LogNotifier) TwoFactorEnrolled(ctx context.Context, a *domain.Account) {
	n.log.Info("security event: two-factor enrollment confirmed",
		"account_id", a.ID, "email", a.Email)
}
