package service

import (
	"context"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/dto"
)

// TwoFactorService owns the TOTP and backup-code lifecycle for an account.
type TwoFactorService interface {
	// BeginSetup generates a fresh secret and backup codes and persists them
	// in a disabled record, replacing any previous material wholesale.
	BeginSetup(ctx context.Context, a *domain.Account) (*dto.TwoFactorSetup, error)

	// Confirm validates the first code against the stored secret and flips
	// the record to enabled.
	Confirm(ctx context.Context, accountID domain.AccountID, code string) error

	// VerifyTOTP checks a code against the stored secret within the tolerance
	// window and stamps last_used_at on success.
	VerifyTOTP(ctx context.Context, accountID domain.AccountID, code string) (bool, error)

	// ConsumeBackupCode validates a single-use code and removes it from the
	// stored set on success. An empty list is invalid, not an error.
	ConsumeBackupCode(ctx context.Context, accountID domain.AccountID, code string) (valid bool, remaining int, err error)

	// Disable clears secret, backup codes and verified-at but keeps the row.
	Disable(ctx context.Context, accountID domain.AccountID) error

	RegenerateBackupCodes(ctx context.Context, accountID domain.AccountID) ([]string, error)
	Status(ctx context.Context, accountID domain.AccountID) (*dto.TwoFactorStatus, error)
}
