package store

import (
	"context"
	"errors"
	"time"

	"attendance-auth/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccountStore struct{ db *gorm.DB }

func (s *Store) Accounts() *AccountStore { return &AccountStore{db: s.DB} }

func (a *AccountStore) Create(ctx context.Context, acc *domain.Account) error {
	if acc.ID == uuid.Nil {
		acc.ID = uuid.New()
	}
	return a.db.WithContext(ctx).Create(acc).Error
}

func (a *AccountStore) GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	var acc domain.Account
	if err := a.db.WithContext(ctx).First(&acc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func (a *AccountStore) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var acc domain.Account
	if err := a.db.WithContext(ctx).First(&acc, "email = ?", domain.NormalizeEmail(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// GetByIDForUpdate loads the account under a row lock; callers must be inside
// WithTx so concurrent counter updates serialize per account.
func (a *AccountStore) GetByIDForUpdate(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	var acc domain.Account
	if err := forUpdate(a.db.WithContext(ctx)).First(&acc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func (a *AccountStore) Save(ctx context.Context, acc *domain.Account) error {
	acc.UpdatedAt = time.Now().UTC()
	return a.db.WithContext(ctx).Save(acc).Error
}

func (a *AccountStore) GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*domain.Account, error) {
	var acc domain.Account
	err := a.db.WithContext(ctx).
		First(&acc, "reset_token_hash = ? AND reset_token_expires > ?", hash, now).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// ClearExpiredLocks releases every lock whose expiry has passed and resets the
// matching failure counters. Returns the number of accounts touched.
func (a *AccountStore) ClearExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	res := a.db.WithContext(ctx).Model(&domain.Account{}).
		Where("locked_until IS NOT NULL AND locked_until < ?", now).
		Updates(map[string]any{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"updated_at":            now,
		})
	return res.RowsAffected, res.Error
}
