package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fundingportal/internal/draftqueue"
	"fundingportal/internal/metrics"
	"fundingportal/internal/model"
	"fundingportal/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// --- DTOs ---

type ReviewFilter struct {
	Status string // one of the lifecycle statuses, or empty for all
	Page   int
	Limit  int
}

type RejectRequestDTO struct {
	Reason string `json:"reason"`
}

type ReviewApplicationResponse struct {
	ApplicationResponse
	OwnerPhone string `json:"owner_phone"`
}

// --- Interface ---

// ReviewService moves submitted applications through review. Callers must hold the admin role.
type ReviewService interface {
	List(ctx context.Context, filter ReviewFilter) ([]ReviewApplicationResponse, int64, error)
	StartReview(ctx context.Context, id, reviewerID uuid.UUID) (*ApplicationResponse, error)
	Approve(ctx context.Context, id, reviewerID uuid.UUID) (*ApplicationResponse, error)
	Reject(ctx context.Context, id, reviewerID uuid.UUID, reason string) (*ApplicationResponse, error)
}

type reviewService struct {
	tx       repository.TransactionManager
	apps     repository.ApplicationRepository
	audit    repository.AuditRepository
	queue    *draftqueue.Queue
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time
	log      zerolog.Logger
}

func NewReviewService(
	tx repository.TransactionManager,
	apps repository.ApplicationRepository,
	audit repository.AuditRepository,
	queue *draftqueue.Queue,
	opts Options,
) ReviewService {
	opts = opts.withDefaults()
	return &reviewService{
		tx:       tx,
		apps:     apps,
		audit:    audit,
		queue:    queue,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		now:      opts.Now,
		log:      opts.Logger.With().Str("component", "review").Logger(),
	}
}

// --- Implementation ---

func (s *reviewService) List(ctx context.Context, filter ReviewFilter) ([]ReviewApplicationResponse, int64, error) {
	if filter.Status != "" && !model.IsKnownStatus(filter.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidStatusTransition, filter.Status)
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	apps, total, err := s.apps.List(ctx, filter.Status, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch applications: %w", err)
	}

	result := make([]ReviewApplicationResponse, 0, len(apps))
	for i := range apps {
		item := ReviewApplicationResponse{ApplicationResponse: *toApplicationResponse(&apps[i])}
		if apps[i].User != nil {
			item.OwnerPhone = apps[i].User.PhoneNumber
		}
		result = append(result, item)
	}
	return result, total, nil
}

func (s *reviewService) StartReview(ctx context.Context, id, reviewerID uuid.UUID) (*ApplicationResponse, error) {
	return s.transition(ctx, id, reviewerID, model.StatusUnderReview, model.ActionStartReview, "")
}

func (s *reviewService) Approve(ctx context.Context, id, reviewerID uuid.UUID) (*ApplicationResponse, error) {
	return s.transition(ctx, id, reviewerID, model.StatusApproved, model.ActionApprove, "")
}

func (s *reviewService) Reject(ctx context.Context, id, reviewerID uuid.UUID, reason string) (*ApplicationResponse, error) {
	return s.transition(ctx, id, reviewerID, model.StatusRejected, model.ActionReject, strings.TrimSpace(reason))
}

// transition applies one status change together with its audit entry, then tells the owner.
func (s *reviewService) transition(ctx context.Context, id, reviewerID uuid.UUID, to, action, reason string) (*ApplicationResponse, error) {
	var app *model.Application
	err := s.queue.Do(ctx, id, func() error {
		return s.tx.RunInTx(ctx, func(txCtx context.Context) error {
			current, err := s.apps.FindByIDForUpdate(txCtx, id)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrApplicationNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to load application: %w", err)
			}
			if !model.CanTransition(current.Status, to) {
				return fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, current.Status, to)
			}

			now := s.now()
			fields := map[string]interface{}{
				"status":      to,
				"reviewed_by": reviewerID,
			}
			if to == model.StatusUnderReview {
				fields["review_started_at"] = now
			} else {
				fields["decided_at"] = now
			}
			if to == model.StatusRejected {
				fields["rejection_reason"] = reason
			}
			if err := s.apps.Update(txCtx, id, fields); err != nil {
				return fmt.Errorf("failed to update application: %w", err)
			}

			details := map[string]interface{}{"from": current.Status, "to": to}
			if reason != "" {
				details["reason"] = reason
			}
			if err := s.audit.Record(txCtx, &reviewerID, action, id.String(), current.ApplicationNumber, details); err != nil {
				return fmt.Errorf("failed to write audit log: %w", err)
			}

			app, err = s.apps.FindByID(txCtx, id)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReview(to)
	notify(s.notifier, app.UserID, Event{
		Type:              EventApplicationUpdated,
		ApplicationID:     app.ID.String(),
		ApplicationNumber: app.ApplicationNumber,
		Status:            app.Status,
		OccurredAt:        s.now(),
	})
	s.log.Info().
		Str("application_id", app.ID.String()).
		Str("status", to).
		Str("reviewer_id", reviewerID.String()).
		Msg("application status changed")
	return toApplicationResponse(app), nil
}
