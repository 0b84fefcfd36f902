package service

import (
	"context"
	"fmt"
	"time"

	"fundingportal/internal/model"
	"fundingportal/internal/repository"

	"github.com/google/uuid"
)

// StatusCounts is the per-status tally over all of a user's applications.
type StatusCounts struct {
	Total       int64 `json:"total"`
	Draft       int64 `json:"draft"`
	Submitted   int64 `json:"submitted"`
	UnderReview int64 `json:"under_review"`
	Approved    int64 `json:"approved"`
	Rejected    int64 `json:"rejected"`
}

type DashboardResponse struct {
	Application  *ApplicationResponse       `json:"application"`
	Applications []ApplicationResponse      `json:"applications"`
	Documents    []model.Document           `json:"documents"`
	Slots        map[string]*model.Document `json:"slots"`
	Progress     Progress                   `json:"progress"`
	Timeline     []TimelineEvent            `json:"timeline"`
	Stats        StatusCounts               `json:"stats"`
	Contact      ContactLinks               `json:"contact"`
}

type DashboardService interface {
	// Overview is a read-only snapshot built around the user's latest application.
	Overview(ctx context.Context, userID uuid.UUID) (*DashboardResponse, error)
}

type dashboardService struct {
	apps    repository.ApplicationRepository
	docs    repository.DocumentRepository
	configs ConfigService
	now     func() time.Time
}

func NewDashboardService(apps repository.ApplicationRepository, docs repository.DocumentRepository, configs ConfigService, opts Options) DashboardService {
	opts = opts.withDefaults()
	return &dashboardService{apps: apps, docs: docs, configs: configs, now: opts.Now}
}

func (s *dashboardService) Overview(ctx context.Context, userID uuid.UUID) (*DashboardResponse, error) {
	all, err := s.apps.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	counts, err := s.apps.CountByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}
	contact, err := s.configs.Contact(ctx)
	if err != nil {
		return nil, err
	}

	resp := &DashboardResponse{
		Applications: make([]ApplicationResponse, 0, len(all)),
		Documents:    []model.Document{},
		Slots:        map[string]*model.Document{},
		Stats:        toStatusCounts(counts),
	}
	for i := range all {
		resp.Applications = append(resp.Applications, *toApplicationResponse(&all[i]))
	}

	var latest *model.Application
	if len(all) > 0 {
		latest = &all[0]
		docs, err := s.docs.ListByApplication(ctx, latest.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		resp.Application = toApplicationResponse(latest)
		resp.Documents = docs
		resp.Slots = LatestBySlot(docs)
		resp.Contact = BuildContactLinks(contact, latest.ApplicationNumber, latest.FullName())
	} else {
		resp.Contact = BuildContactLinks(contact, "", "")
	}

	resp.Progress = BuildProgress(latest, resp.Documents)
	resp.Timeline = BuildTimeline(latest, resp.Documents, s.now())
	return resp, nil
}

func toStatusCounts(counts map[string]int64) StatusCounts {
	sc := StatusCounts{
		Draft:       counts[model.StatusDraft],
		Submitted:   counts[model.StatusSubmitted],
		UnderReview: counts[model.StatusUnderReview],
		Approved:    counts[model.StatusApproved],
		Rejected:    counts[model.StatusRejected],
	}
	sc.Total = sc.Draft + sc.Submitted + sc.UnderReview + sc.Approved + sc.Rejected
	return sc
}
