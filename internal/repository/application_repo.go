package repository

import (
	"context"
	"errors"

	"fundingportal/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApplicationRepository interface {
	Create(ctx context.Context, app *model.Application) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Application, error)
	// LatestActive returns the newest draft or submitted application of a user, or nil.
	LatestActive(ctx context.Context, userID uuid.UUID) (*model.Application, error)
	Latest(ctx context.Context, userID uuid.UUID) (*model.Application, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Application, error)
	List(ctx context.Context, status string, page, limit int) ([]model.Application, int64, error)
	CountByStatus(ctx context.Context, userID uuid.UUID) (map[string]int64, error)
	// Update applies fields to the row and bumps its version.
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	NumberExists(ctx context.Context, number string) (bool, error)
	LastNumber(ctx context.Context) (string, error)
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) Create(ctx context.Context, app *model.Application) error {
	return GetDB(ctx, r.db).Create(app).Error
}

func (r *applicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	if err := GetDB(ctx, r.db).First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	if err := forUpdate(ctx, GetDB(ctx, r.db)).First(&app, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) LatestActive(ctx context.Context, userID uuid.UUID) (*model.Application, error) {
	var app model.Application
	err := GetDB(ctx, r.db).
		Where("user_id = ? AND status IN ?", userID, []string{model.StatusDraft, model.StatusSubmitted}).
		Order("created_at DESC").
		First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) Latest(ctx context.Context, userID uuid.UUID) (*model.Application, error) {
	var app model.Application
	err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at DESC").First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *applicationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Application, error) {
	var apps []model.Application
	if err := GetDB(ctx, r.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *applicationRepository) List(ctx context.Context, status string, page, limit int) ([]model.Application, int64, error) {
	var apps []model.Application
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Application{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("User")
	if status != "" {
		fetchQuery = fetchQuery.Where("status = ?", status)
	}
	if err := fetchQuery.Order("created_at DESC").Offset(offset).Limit(limit).Find(&apps).Error; err != nil {
		return nil, 0, err
	}

	return apps, total, nil
}

func (r *applicationRepository) CountByStatus(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := GetDB(ctx, r.db).Model(&model.Application{}).
		Select("status, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *applicationRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["version"] = gorm.Expr("version + 1")
	res := GetDB(ctx, r.db).Model(&model.Application{ID: id}).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *applicationRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Application{}).Where("application_number = ?", number).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *applicationRepository) LastNumber(ctx context.Context) (string, error) {
	var app model.Application
	err := GetDB(ctx, r.db).Select("application_number").Order("created_at DESC").First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return app.ApplicationNumber, nil
}
