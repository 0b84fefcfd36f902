package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fundingportal/internal/model"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultFundingTypes seeds the funding_types configuration on first start.
var DefaultFundingTypes = []string{
	"business_creation",
	"business_development",
	"real_estate",
	"education",
	"personal_project",
	"other",
}

// NewConnection opens the PostgreSQL pool with GORM, tunes it, pings it and migrates the schema.
func NewConnection(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(db); err != nil {
		log.Warn().Err(err).Msg("failed to auto-migrate models")
	}
	if err := Seed(ctx, db); err != nil {
		log.Warn().Err(err).Msg("failed to seed default configuration")
	}

	return db, nil
}

// Migrate creates or updates every table the portal owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Session{},
		&model.Application{},
		&model.Document{},
		&model.AuditLog{},
		&model.SiteConfiguration{},
		&model.ContactPreference{},
	)
}

// Seed inserts the default funding types and an active contact preference when absent.
func Seed(ctx context.Context, db *gorm.DB) error {
	var cfg model.SiteConfiguration
	err := db.WithContext(ctx).First(&cfg, "config_key = ?", model.ConfigKeyFundingTypes).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		raw, _ := json.Marshal(DefaultFundingTypes)
		cfg = model.SiteConfiguration{ConfigKey: model.ConfigKeyFundingTypes, ConfigValue: string(raw)}
		if err := db.WithContext(ctx).Create(&cfg).Error; err != nil {
			return fmt.Errorf("seed funding types: %w", err)
		}
	} else if err != nil {
		return err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&model.ContactPreference{}).Where("is_active = ?", true).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		contact := model.ContactPreference{
			WhatsAppNumber:          "+33600000000",
			WhatsAppMessageTemplate: "Hello, I am [USER_NAME] and I just submitted funding application [APPLICATION_NUMBER].",
			ContactEmail:            "support@example.com",
			EmailSubjectTemplate:    "Funding application [APPLICATION_NUMBER]",
			EmailBodyTemplate:       "Hello,\n\nI am [USER_NAME] and I just submitted funding application [APPLICATION_NUMBER].",
			IsActive:                true,
		}
		if err := db.WithContext(ctx).Create(&contact).Error; err != nil {
			return fmt.Errorf("seed contact preference: %w", err)
		}
	}
	return nil
}
