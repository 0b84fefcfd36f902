package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fundingportal/internal/model"

	"github.com/shopspring/decimal"
)

// Timeline event types
const (
	TimelineCreated          = "created"
	TimelineDocumentUploaded = "document_uploaded"
	TimelineSubmitted        = "submitted"
	TimelineUnderReview      = "under_review"
	TimelineApproved         = "approved"
	TimelineRejected         = "rejected"
)

// Progress checkpoint labels, in display order.
var progressLabels = []string{"Personal Info", "Financial Details", "Documents", "Final Validation"}

type ProgressStep struct {
	ID        int    `json:"id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

type Progress struct {
	Steps          []ProgressStep `json:"steps"`
	CompletedSteps int            `json:"completed_steps"`
	Percentage     int            `json:"percentage"`
}

type TimelineEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	RelativeTime string    `json:"relative_time"`
}

// BuildProgress derives the four dashboard checkpoints. A nil application has none completed.
func BuildProgress(app *model.Application, docs []model.Document) Progress {
	done := make([]bool, len(progressLabels))
	if app != nil {
		submitted := app.Status != model.StatusDraft
		done[0] = submitted || app.CurrentStep >= model.StepFinancialDetails
		done[1] = submitted
		done[2] = AllSlotsComplete(LatestBySlot(docs))
		done[3] = app.Status == model.StatusApproved || app.Status == model.StatusRejected
	}

	p := Progress{Steps: make([]ProgressStep, 0, len(progressLabels))}
	for i, label := range progressLabels {
		p.Steps = append(p.Steps, ProgressStep{ID: i + 1, Label: label, Completed: done[i]})
		if done[i] {
			p.CompletedSteps++
		}
	}
	p.Percentage = (p.CompletedSteps*100 + len(progressLabels)/2) / len(progressLabels)
	return p
}

// BuildTimeline synthesizes the lifecycle events of app, newest first.
func BuildTimeline(app *model.Application, docs []model.Document, now time.Time) []TimelineEvent {
	if app == nil {
		return []TimelineEvent{}
	}

	events := []TimelineEvent{{
		ID:          "created",
		Type:        TimelineCreated,
		Title:       "Application Created",
		Description: "Funding request for " + formatEUR(app.FundingAmount),
		Timestamp:   app.CreatedAt,
	}}

	for _, d := range docs {
		if d.UploadStatus != model.UploadCompleted {
			continue
		}
		at := d.CreatedAt
		if d.UploadedAt != nil {
			at = *d.UploadedAt
		}
		events = append(events, TimelineEvent{
			ID:          "doc-" + d.ID.String(),
			Type:        TimelineDocumentUploaded,
			Title:       "Document Uploaded",
			Description: d.FileName,
			Timestamp:   at,
		})
	}

	if app.SubmittedAt != nil {
		events = append(events, TimelineEvent{
			ID:          "submitted",
			Type:        TimelineSubmitted,
			Title:       "Application Submitted",
			Description: "Your application has been submitted for review",
			Timestamp:   *app.SubmittedAt,
		})
	}

	if app.ReviewStartedAt != nil || app.Status == model.StatusUnderReview {
		events = append(events, TimelineEvent{
			ID:          "under_review",
			Type:        TimelineUnderReview,
			Title:       "Under Review",
			Description: "Our team is reviewing your application",
			Timestamp:   orUpdated(app.ReviewStartedAt, app),
		})
	}

	switch app.Status {
	case model.StatusApproved:
		events = append(events, TimelineEvent{
			ID:          "decision",
			Type:        TimelineApproved,
			Title:       "Application Approved",
			Description: "Congratulations! Your funding application has been approved",
			Timestamp:   orUpdated(app.DecidedAt, app),
		})
	case model.StatusRejected:
		events = append(events, TimelineEvent{
			ID:          "decision",
			Type:        TimelineRejected,
			Title:       "Application Not Approved",
			Description: "Unfortunately, your application was not approved",
			Timestamp:   orUpdated(app.DecidedAt, app),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	for i := range events {
		events[i].RelativeTime = RelativeTime(events[i].Timestamp, now)
	}
	return events
}

// RelativeTime renders t relative to now: minutes, hours or days for the last
// week, then a short date that carries the year only when it differs from now's.
func RelativeTime(t, now time.Time) string {
	t, now = t.UTC(), now.UTC()
	diff := now.Sub(t)
	if diff < 0 {
		diff = 0
	}

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff/(24*time.Hour)))
	}
	if t.Year() != now.Year() {
		return t.Format("Jan 2, 2006")
	}
	return t.Format("Jan 2")
}

func orUpdated(at *time.Time, app *model.Application) time.Time {
	if at != nil {
		return *at
	}
	return app.UpdatedAt
}

// formatEUR renders an amount as €1,234.50.
func formatEUR(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + "€" + b.String() + "." + frac
}
