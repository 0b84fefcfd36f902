package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const ConfigKeyFundingTypes = "funding_types"

// SiteConfiguration is a key/value row; ConfigValue holds raw JSON.
type SiteConfiguration struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConfigKey   string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"config_key"`
	ConfigValue string    `gorm:"type:jsonb;not null" json:"config_value"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SiteConfiguration) TableName() string { return "site_configuration" }

func (s *SiteConfiguration) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ContactPreference holds the support channels and message templates shown after submission.
// Templates may contain the [APPLICATION_NUMBER] and [USER_NAME] placeholders.
type ContactPreference struct {
	ID                      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WhatsAppNumber          string    `gorm:"column:whatsapp_number;type:varchar(20)" json:"whatsapp_number"`
	WhatsAppMessageTemplate string    `gorm:"column:whatsapp_message_template;type:text" json:"whatsapp_message_template"`
	ContactEmail            string    `gorm:"type:varchar(255)" json:"contact_email"`
	EmailSubjectTemplate    string    `gorm:"type:text" json:"email_subject_template"`
	EmailBodyTemplate       string    `gorm:"type:text" json:"email_body_template"`
	IsActive                bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt               time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ContactPreference) TableName() string { return "contact_preferences" }

func (c *ContactPreference) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
