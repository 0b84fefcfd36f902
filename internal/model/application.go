package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Application lifecycle statuses
const (
	StatusDraft       = "draft"
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusApproved    = "approved"
	StatusRejected    = "rejected"
)

// Wizard steps
const (
	StepFundingAmount    = 0
	StepPersonalInfo     = 1
	StepFinancialDetails = 2
	StepConfirmation     = 3
)

var transitions = map[string][]string{
	StatusDraft:       {StatusSubmitted},
	StatusSubmitted:   {StatusUnderReview},
	StatusUnderReview: {StatusApproved, StatusRejected},
}

// CanTransition reports whether an application may move from one status to another.
// Statuses only move forward; approved and rejected are terminal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsKnownStatus reports whether s is one of the five lifecycle statuses.
func IsKnownStatus(s string) bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Application is a funding request owned by exclusively one user.
type Application struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationNumber string    `gorm:"type:varchar(8);uniqueIndex;not null" json:"application_number"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User              *User     `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Status            string    `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`
	CurrentStep       int       `gorm:"not null;default:0" json:"current_step"`

	FundingAmount decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"funding_amount"`

	FirstName   string `gorm:"type:varchar(100)" json:"first_name"`
	LastName    string `gorm:"type:varchar(100)" json:"last_name"`
	DateOfBirth string `gorm:"type:varchar(10)" json:"date_of_birth"`
	Gender      string `gorm:"type:varchar(20)" json:"gender"`

	Email              string `gorm:"type:varchar(255)" json:"email"`
	ResidentialAddress string `gorm:"type:text" json:"residential_address"`
	CountryOfResidence string `gorm:"type:varchar(100)" json:"country_of_residence"`

	FundingType   string `gorm:"type:varchar(100)" json:"funding_type"`
	FundingReason string `gorm:"type:text" json:"funding_reason"`

	Profession    string              `gorm:"type:varchar(100)" json:"profession"`
	MonthlyIncome decimal.NullDecimal `gorm:"type:decimal(14,2)" json:"monthly_income"`

	LanguagePreference string `gorm:"type:varchar(10);not null;default:'en'" json:"language_preference"`
	Version            int    `gorm:"not null;default:1" json:"version"`

	SubmittedAt      *time.Time `json:"submitted_at"`
	Step3CompletedAt *time.Time `gorm:"column:step_3_completed_at" json:"step_3_completed_at"`
	ReviewStartedAt  *time.Time `json:"review_started_at"`
	DecidedAt        *time.Time `json:"decided_at"`
	ReviewedBy       *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	RejectionReason  string     `gorm:"type:text" json:"rejection_reason"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Documents []Document `gorm:"foreignKey:ApplicationID" json:"documents,omitempty"`
}

func (Application) TableName() string { return "funding_applications" }

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// HasPersonalInfo reports whether the step-1 fields have been persisted.
func (a *Application) HasPersonalInfo() bool {
	return a.FirstName != "" && a.LastName != "" && a.DateOfBirth != ""
}

// FullName is the applicant's display name.
func (a *Application) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	if a.FirstName == "" {
		return a.LastName
	}
	return a.FirstName + " " + a.LastName
}
