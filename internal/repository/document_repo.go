package repository

import (
	"context"

	"fundingportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.Document) error
	// ListByApplication returns every row for the application, newest first.
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]model.Document, error)
	// FindInApplication returns gorm.ErrRecordNotFound unless id belongs to applicationID.
	FindInApplication(ctx context.Context, applicationID, id uuid.UUID) (*model.Document, error)
}

type documentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *model.Document) error {
	return GetDB(ctx, r.db).Create(doc).Error
}

func (r *documentRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]model.Document, error) {
	var docs []model.Document
	if err := GetDB(ctx, r.db).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) FindInApplication(ctx context.Context, applicationID, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	if err := GetDB(ctx, r.db).First(&doc, "id = ? AND application_id = ?", id, applicationID).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}
