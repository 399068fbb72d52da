package domain

import "errors"

var (
	// ErrInvalidCredentials covers unknown email, wrong password and the role
	// hint mismatch. The cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is surfaced distinctly so the caller can tell the user
	// to retry later.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrInvalidOrExpiredToken covers any pending-token failure: bad
	// signature, expiry, or a token of the wrong kind.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrInvalidSecondFactor covers a wrong TOTP code or backup code.
	ErrInvalidSecondFactor = errors.New("invalid second factor")

	// ErrSetupNotConfirmed is returned when a backup code is submitted before
	// the first TOTP confirmation. Backup codes only become meaningful once
	// the authenticator enrollment is confirmed.
	ErrSetupNotConfirmed = errors.New("authenticator setup not confirmed")

	// ErrTwoFactorNotSetUp means no secret exists for the account at all.
	ErrTwoFactorNotSetUp = errors.New("two-factor authentication not set up")

	ErrEmailTaken           = errors.New("email already in use")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrSecondFactorRequired = errors.New("code or backup code required")
	ErrTwoFactorNotEnabled  = errors.New("two-factor authentication not enabled")
)
