package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// BackupCodeHashes is the ordered set of one-way hashes for the unused backup
// codes of an account, stored as a JSON array in a single column.
type BackupCodeHashes []string

func (b BackupCodeHashes) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

func (b *BackupCodeHashes) Scan(src any) error {
	if src == nil {
		*b = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	}
	return errors.New("unsupported backup code hashes column type")
}

type TwoFactorRecord struct {
	AccountID        AccountID        `gorm:"type:uuid;primaryKey" db:"account_id"`
	Enabled          bool             `gorm:"not null;default:false" db:"enabled"`
	Secret           *string          `gorm:"type:text" db:"secret"`
	BackupCodeHashes BackupCodeHashes `gorm:"type:jsonb" db:"backup_code_hashes"`
	VerifiedAt       *time.Time       `gorm:"type:timestamptz" db:"verified_at"`
	LastUsedAt       *time.Time       `gorm:"type:timestamptz" db:"last_used_at"`
	CreatedAt        time.Time        `gorm:"not null" db:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null" db:"updated_at"`
}

func (TwoFactorRecord) TableName() string { return "two_factor_records" }

// Active reports whether the record is both confirmed and holds a secret.
// Enabled without a secret is an invalid state and never treated as active.
func (r *TwoFactorRecord) Active() bool {
	return r != nil && r.Enabled && r.Secret != nil && *r.Secret != ""
}
