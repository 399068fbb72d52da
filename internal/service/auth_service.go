package service

import (
	"context"

	"attendance-auth/internal/domain"
	"attendance-auth/internal/dto"
)

// AuthService drives the login state machine and the account-facing 2FA
// management operations. The policy value is injected per call so the core
// never reads the settings collaborator itself.
type AuthService interface {
	Register(ctx context.Context, r dto.RegisterRequest, ip, ua string) (*dto.RegisterResponse, error)
	Login(ctx context.Context, r dto.LoginRequest, policy domain.GlobalPolicy, ip, ua string) (*dto.LoginResponse, error)
	VerifySecondFactor(ctx context.Context, r dto.VerifySecondFactorRequest, ip, ua string) (*dto.LoginResponse, error)

	ForgotPassword(ctx context.Context, email string) (*dto.ForgotPasswordResponse, error)
	ResetPassword(ctx context.Context, token, newPassword string) error

	// Authenticated 2FA management. Disable and regeneration re-prove the
	// password before touching the record.
	SetupTwoFactor(ctx context.Context, accountID domain.AccountID) (*dto.TwoFactorSetup, error)
	ConfirmTwoFactor(ctx context.Context, accountID domain.AccountID, code string) error
	DisableTwoFactor(ctx context.Context, accountID domain.AccountID, password string) error
	RegenerateBackupCodes(ctx context.Context, accountID domain.AccountID, password string) ([]string, error)
	TwoFactorStatus(ctx context.Context, accountID domain.AccountID) (*dto.TwoFactorStatus, error)
}
