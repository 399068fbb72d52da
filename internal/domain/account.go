package domain

import "time"

type Account struct {
	ID       AccountID `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	Email    string    `gorm:"type:citext;uniqueIndex:ux_accounts_email" db:"email" json:"email"`
	FullName string    `gorm:"type:text" db:"full_name" json:"fullName,omitempty"`
	Role     Role      `gorm:"type:text;not null" db:"role" json:"role"`

	// Credential columns. Written only through the password service's Apply
	// path; callers always hand over plaintext.
	PasswordAlgo   string `gorm:"type:text;not null" db:"password_algo" json:"-"`
	PasswordHash   []byte `gorm:"type:bytea;not null" db:"password_hash" json:"-"`
	PasswordSalt   []byte `gorm:"type:bytea;not null" db:"password_salt" json:"-"`
	PasswordParams []byte `gorm:"type:jsonb;not null" db:"password_params" json:"-"`
	PasswordVer    int    `gorm:"not null;default:1" db:"password_ver" json:"-"`

	FailedLoginAttempts int        `gorm:"not null;default:0" db:"failed_login_attempts" json:"-"`
	LockedUntil         *time.Time `gorm:"type:timestamptz" db:"locked_until" json:"-"`
	LastLoginAt         *time.Time `gorm:"type:timestamptz" db:"last_login_at" json:"lastLoginAt,omitempty"`
	IsActive            bool       `gorm:"not null;default:true" db:"is_active" json:"isActive"`

	ResetTokenHash    *string    `gorm:"type:text" db:"reset_token_hash" json:"-"`
	ResetTokenExpires *time.Time `gorm:"type:timestamptz" db:"reset_token_expires" json:"-"`

	CreatedAt time.Time `gorm:"not null" db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" db:"updated_at" json:"updatedAt"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) GetAlgo() string       { return a.PasswordAlgo }
func (a *Account) GetHash() []byte       { return a.PasswordHash }
func (a *Account) GetSalt() []byte       { return a.PasswordSalt }
func (a *Account) GetParamsJSON() []byte { return a.PasswordParams }
func (a *Account) GetPasswordVer() int   { return a.PasswordVer }

// Locked reports whether a lock is present and strictly in the future.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
