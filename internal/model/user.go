package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an applicant or reviewer, identified by phone number. The PIN is only ever stored hashed.
type User struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PhoneNumber       string     `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone_number"`
	FirstName         string     `gorm:"type:varchar(100)" json:"first_name"`
	LastName          string     `gorm:"type:varchar(100)" json:"last_name"`
	Email             string     `gorm:"type:varchar(255)" json:"email"`
	PINHash           string     `gorm:"column:pin_hash;type:varchar(255);not null" json:"-"`
	PINSetAt          time.Time  `gorm:"column:pin_set_at;not null" json:"-"`
	FailedPINAttempts int        `gorm:"column:failed_pin_attempts;not null;default:0" json:"-"`
	Role              string     `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	IsActive          bool       `gorm:"not null;default:true" json:"is_active"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Session is the server-side record behind an issued session token.
// Only a hash of the token is persisted.
type Session struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User      User       `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	TokenHash string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	IPAddress string     `gorm:"type:varchar(64)" json:"ip_address"`
	UserAgent string     `gorm:"type:varchar(512)" json:"user_agent"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Active reports whether the session can still authenticate requests at now.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
