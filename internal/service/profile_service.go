package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fundingportal/internal/model"
	"fundingportal/internal/repository"
	"fundingportal/internal/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ProfileResponse struct {
	UserID      uuid.UUID  `json:"user_id"`
	PhoneNumber string     `json:"phone_number"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLogin   *time.Time `json:"last_login"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ProfileService interface {
	Get(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error)
	// Update replaces the contact fields of the account. Only changed fields are audited.
	Update(ctx context.Context, userID uuid.UUID, req validation.Profile) (*ProfileResponse, error)
}

type profileService struct {
	tx        repository.TransactionManager
	users     repository.UserRepository
	audit     repository.AuditRepository
	validator *validation.Validator
	log       zerolog.Logger
}

func NewProfileService(tx repository.TransactionManager, users repository.UserRepository, audit repository.AuditRepository, v *validation.Validator, opts Options) ProfileService {
	opts = opts.withDefaults()
	return &profileService{
		tx:        tx,
		users:     users,
		audit:     audit,
		validator: v,
		log:       opts.Logger.With().Str("component", "profile").Logger(),
	}
}

func (s *profileService) Get(ctx context.Context, userID uuid.UUID) (*ProfileResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err)
	}
	return toProfileResponse(user), nil
}

func (s *profileService) Update(ctx context.Context, userID uuid.UUID, req validation.Profile) (*ProfileResponse, error) {
	req.Normalize()
	if err := s.validator.Profile(req); err != nil {
		return nil, err
	}

	var user *model.User
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		user, err = s.users.GetByIDForUpdate(txCtx, userID)
		if err != nil {
			return userLookupError(err)
		}

		changed := profileChanges(user, req)
		if len(changed) == 0 {
			return nil
		}
		user.FirstName = req.FirstName
		user.LastName = req.LastName
		user.Email = req.Email
		if err := s.users.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}
		return s.audit.Record(txCtx, &userID, model.ActionUpdateProfile, userID.String(), user.PhoneNumber, map[string]interface{}{
			"fields": changed,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().Str("user_id", userID.String()).Msg("profile updated")
	return toProfileResponse(user), nil
}

// profileChanges lists the JSON names of the fields req would change, sorted.
func profileChanges(u *model.User, req validation.Profile) []string {
	var changed []string
	for field, diff := range map[string]bool{
		"first_name": u.FirstName != req.FirstName,
		"last_name":  u.LastName != req.LastName,
		"email":      u.Email != req.Email,
	} {
		if diff {
			changed = append(changed, field)
		}
	}
	sort.Strings(changed)
	return changed
}

func userLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionInvalid
	}
	return fmt.Errorf("failed to load user: %w", err)
}

func toProfileResponse(u *model.User) *ProfileResponse {
	return &ProfileResponse{
		UserID:      u.ID,
		PhoneNumber: u.PhoneNumber,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Role:        u.Role,
		LastLogin:   u.LastLogin,
		CreatedAt:   u.CreatedAt,
	}
}
