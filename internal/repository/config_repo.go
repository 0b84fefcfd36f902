package repository

import (
	"context"
	"errors"

	"fundingportal/internal/model"

	"gorm.io/gorm"
)

// ConfigRepository reads the externally managed site configuration and contact templates.
type ConfigRepository interface {
	GetValue(ctx context.Context, key string) (*model.SiteConfiguration, error)
	ActiveContact(ctx context.Context) (*model.ContactPreference, error)
}

type configRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) ConfigRepository {
	return &configRepository{db: db}
}

func (r *configRepository) GetValue(ctx context.Context, key string) (*model.SiteConfiguration, error) {
	var cfg model.SiteConfiguration
	err := GetDB(ctx, r.db).First(&cfg, "config_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *configRepository) ActiveContact(ctx context.Context) (*model.ContactPreference, error) {
	var contact model.ContactPreference
	err := GetDB(ctx, r.db).Where("is_active = ?", true).Order("updated_at DESC").First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}
