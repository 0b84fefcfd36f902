package repository

import (
	"context"
	"time"

	"fundingportal/internal/model"

	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	GetByTokenHash(ctx context.Context, hash string) (*model.Session, error)
	Revoke(ctx context.Context, hash string, at time.Time) (bool, error)
	// DeleteStale removes sessions that expired or were revoked before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *model.Session) error {
	return GetDB(ctx, r.db).Create(s).Error
}

func (r *sessionRepository) GetByTokenHash(ctx context.Context, hash string) (*model.Session, error) {
	var s model.Session
	if err := GetDB(ctx, r.db).Preload("User").First(&s, "token_hash = ?", hash).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, hash string, at time.Time) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Session{}).
		Where("token_hash = ? AND revoked_at IS NULL", hash).
		Update("revoked_at", at)
	return res.RowsAffected > 0, res.Error
}

func (r *sessionRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := GetDB(ctx, r.db).
		Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", cutoff, cutoff).
		Delete(&model.Session{})
	return res.RowsAffected, res.Error
}
