package domain

import "time"

// Settings mirrors the system settings row owned by the settings collaborator.
// This subsystem only ever reads it.
type Settings struct {
	ID                     uint      `gorm:"primaryKey;autoIncrement" db:"id"`
	Require2FA             bool      `gorm:"not null;default:false" db:"require_2fa"`
	MaxLoginAttempts       int       `gorm:"not null;default:5" db:"max_login_attempts"`
	LockoutDurationMinutes int       `gorm:"not null;default:30" db:"lockout_duration_minutes"`
	PasswordMinLength      int       `gorm:"not null;default:8" db:"password_min_length"`
	CreatedAt              time.Time `gorm:"not null" db:"created_at"`
	UpdatedAt              time.Time `gorm:"not null" db:"updated_at"`
}

func (Settings) TableName() string { return "settings" }

// Policy converts the stored row into the value handed to the login
// orchestrator, falling back to defaults for non-positive fields.
func (s *Settings) Policy() GlobalPolicy {
	p := DefaultPolicy()
	if s == nil {
		return p
	}
	p.Require2FA = s.Require2FA
	if s.MaxLoginAttempts > 0 {
		p.MaxLoginAttempts = s.MaxLoginAttempts
	}
	if s.LockoutDurationMinutes > 0 {
		p.LockoutDuration = time.Duration(s.LockoutDurationMinutes) * time.Minute
	}
	return p
}
