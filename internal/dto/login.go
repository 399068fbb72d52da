package dto

import "time"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	// Optional role hint from the client; a mismatch is treated like any
	// other bad credential.
	Role string `json:"role,omitempty" validate:"omitempty,oneof=admin teacher student"`
}

type AccountInfo struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName,omitempty"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// LoginResponse is one of three shapes: a finished login (Token set), a
// second-factor challenge (TwoFARequired + PendingToken), or a first-time
// enrollment (TwoFASetupRequired + PendingToken + Setup).
type LoginResponse struct {
	Token              string          `json:"token,omitempty"`
	ExpiresIn          int64           `json:"expiresIn,omitempty"`
	Account            *AccountInfo    `json:"account,omitempty"`
	TwoFARequired      bool            `json:"twoFARequired,omitempty"`
	TwoFASetupRequired bool            `json:"twoFASetupRequired,omitempty"`
	PendingToken       string          `json:"pendingToken,omitempty"`
	Setup              *TwoFactorSetup `json:"setup,omitempty"`
}

type VerifySecondFactorRequest struct {
	PendingToken string `json:"pendingToken" validate:"required"`
	Code         string `json:"code,omitempty"`
	BackupCode   string `json:"backupCode,omitempty"`
}

type RegisterRequest struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=admin teacher student"`
}

type RegisterResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expiresIn"`
	Account   *AccountInfo `json:"account"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ForgotPasswordResponse struct {
	Message string `json:"message"`
	// Returned so the (out of scope) mailer collaborator can deliver it.
	ResetToken string `json:"resetToken,omitempty"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}
