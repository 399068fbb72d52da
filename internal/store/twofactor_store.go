package store

import (
	"context"
	"errors"
	"time"

	"attendance-auth/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TwoFactorStore struct{ db *gorm.DB }

func (s *Store) TwoFactor() *TwoFactorStore { return &TwoFactorStore{db: s.DB} }

func (t *TwoFactorStore) Get(ctx context.Context, accountID domain.AccountID) (*domain.TwoFactorRecord, error) {
	var rec domain.TwoFactorRecord
	if err := t.db.WithContext(ctx).First(&rec, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// GetForUpdate locks the record row for the duration of the surrounding
// transaction. Backup-code consumption relies on this to stay single-use
// under concurrent redemptions.
func (t *TwoFactorStore) GetForUpdate(ctx context.Context, accountID domain.AccountID) (*domain.TwoFactorRecord, error) {
	var rec domain.TwoFactorRecord
	if err := forUpdate(t.db.WithContext(ctx)).First(&rec, "account_id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Upsert replaces secret and backup codes wholesale, keyed on the account.
// Requires the unique primary key on two_factor_records.account_id.
func (t *TwoFactorStore) Upsert(ctx context.Context, rec *domain.TwoFactorRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"enabled", "secret", "backup_code_hashes", "verified_at", "last_used_at", "updated_at",
		}),
	}).Create(rec).Error
}

func (t *TwoFactorStore) Save(ctx context.Context, rec *domain.TwoFactorRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	return t.db.WithContext(ctx).Save(rec).Error
}
