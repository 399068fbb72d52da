package dto

import "time"

// TwoFactorSetup carries the one-time plaintext material shown to the user at
// enrollment. None of it is ever returned again.
type TwoFactorSetup struct {
	Secret      string   `json:"secret"`
	OtpauthURL  string   `json:"otpauthUrl"`
	QRCode      string   `json:"qrCode"` // PNG data URL of OtpauthURL
	BackupCodes []string `json:"backupCodes"`
}

type TwoFactorStatus struct {
	Enabled         bool       `json:"enabled"`
	VerifiedAt      *time.Time `json:"verifiedAt,omitempty"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
	BackupCodesLeft int        `json:"backupCodesLeft"`
}

type ConfirmSetupRequest struct {
	Code string `json:"code" validate:"required"`
}

// PasswordGatedRequest re-proves possession of the password before a
// security-sensitive 2FA management action.
type PasswordGatedRequest struct {
	Password string `json:"password" validate:"required"`
}

type RegenerateBackupCodesResponse struct {
	BackupCodes []string `json:"backupCodes"`
}
