package store

import (
	"context"
	"errors"

	"attendance-auth/internal/domain"

	"gorm.io/gorm"
)

type SettingsStore struct{ db *gorm.DB }

func (s *Store) Settings() *SettingsStore { return &SettingsStore{db: s.DB} }

// Current returns the most recent settings row, or ErrRecordNotFound when the
// collaborator has never written one.
func (s *SettingsStore) Current(ctx context.Context) (*domain.Settings, error) {
	var row domain.Settings
	if err := s.db.WithContext(ctx).Order("id DESC").First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &row, nil
}

// CurrentPolicy reads the settings row and converts it into the policy value
// passed to the login orchestrator. A missing row yields the defaults.
func (s *SettingsStore) CurrentPolicy(ctx context.Context) (domain.GlobalPolicy, error) {
	row, err := s.Current(ctx)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return domain.DefaultPolicy(), nil
		}
		return domain.GlobalPolicy{}, err
	}
	return row.Policy(), nil
}
