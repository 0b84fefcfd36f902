package docmock

import (
	"context"

	"fundingportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repo is a function-backed mock that satisfies repository.DocumentRepository.
type Repo struct {
	CreateFn            func(ctx context.Context, doc *model.Document) error
	ListByApplicationFn func(ctx context.Context, applicationID uuid.UUID) ([]model.Document, error)
	FindInApplicationFn func(ctx context.Context, applicationID, id uuid.UUID) (*model.Document, error)
}

func (m *Repo) Create(ctx context.Context, doc *model.Document) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, doc)
	}
	return nil
}

func (m *Repo) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]model.Document, error) {
	if m.ListByApplicationFn != nil {
		return m.ListByApplicationFn(ctx, applicationID)
	}
	return []model.Document{}, nil
}

func (m *Repo) FindInApplication(ctx context.Context, applicationID, id uuid.UUID) (*model.Document, error) {
	if m.FindInApplicationFn != nil {
		return m.FindInApplicationFn(ctx, applicationID, id)
	}
	return nil, gorm.ErrRecordNotFound
}
