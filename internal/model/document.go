package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document slots
const (
	DocIdentityFront = "identity_front"
	DocIdentityBack  = "identity_back"
	DocRIB           = "rib"
)

// RequiredDocumentTypes lists the three slots an application must fill.
var RequiredDocumentTypes = []string{DocIdentityFront, DocIdentityBack, DocRIB}

// IsDocumentType reports whether t names one of the three document slots.
func IsDocumentType(t string) bool {
	for _, known := range RequiredDocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Upload statuses
const (
	UploadUploading = "uploading"
	UploadCompleted = "completed"
	UploadFailed    = "failed"
)

// Document is an uploaded file attached to an application. Replacing a slot
// inserts a new row; older rows stay in place as superseded uploads.
type Document struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"application_id"`
	DocumentType  string     `gorm:"type:varchar(20);not null;index" json:"document_type"`
	FileName      string     `gorm:"type:varchar(255);not null" json:"file_name"`
	FilePath      string     `gorm:"type:varchar(1024);not null" json:"file_path"`
	StorageKey    string     `gorm:"type:varchar(512);not null" json:"-"`
	FileSize      int64      `gorm:"not null" json:"file_size"`
	MimeType      string     `gorm:"type:varchar(100);not null" json:"mime_type"`
	UploadStatus  string     `gorm:"type:varchar(20);not null;default:'uploading'" json:"upload_status"`
	UploadedAt    *time.Time `json:"uploaded_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (Document) TableName() string { return "application_documents" }

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
