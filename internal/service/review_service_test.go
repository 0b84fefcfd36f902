package service

import (
	"context"
	"testing"

	"fundingportal/internal/model"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReview_ApprovePath(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")
	adminID := e.register(t, testAdminPhone)
	app := e.submitted(t, userID)

	started, err := e.review.StartReview(ctx, app.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnderReview, started.Status)
	require.NotNil(t, started.ReviewStartedAt)
	assert.Nil(t, started.DecidedAt)

	approved, err := e.review.Approve(ctx, app.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedAt)
	assert.Empty(t, approved.RejectionReason)

	stored, err := e.apps.FindByID(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReviewedBy)
	assert.Equal(t, adminID, *stored.ReviewedBy)

	var statuses []string
	for _, ev := range e.notifier.all() {
		assert.Equal(t, userID.String(), ev.UserID)
		statuses = append(statuses, ev.Event.Status)
	}
	assert.Equal(t, []string{model.StatusSubmitted, model.StatusUnderReview, model.StatusApproved}, statuses)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.ReviewTransitions.WithLabelValues(model.StatusApproved)))
}

func TestReview_RejectStoresReason(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")
	adminID := e.register(t, testAdminPhone)
	app := e.submitted(t, userID)

	_, err := e.review.StartReview(ctx, app.ID, adminID)
	require.NoError(t, err)
	rejected, err := e.review.Reject(ctx, app.ID, adminID, "  missing RIB  ")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, rejected.Status)
	assert.Equal(t, "missing RIB", rejected.RejectionReason)

	logs, _, err := NewAuditService(e.audit).GetAuditLogs(ctx, 1, 50)
	require.NoError(t, err)
	var found bool
	for _, l := range logs {
		if l.Action == model.ActionReject {
			found = true
			assert.Equal(t, app.ID.String(), l.EntityID)
			assert.Equal(t, "+33*******01", l.Actor)
			assert.Contains(t, l.Details, `"reason":"missing RIB"`)
			assert.Contains(t, l.Details, `"from":"under_review"`)
		}
	}
	assert.True(t, found, "rejection is audited")
}

func TestReview_InvalidTransitions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")
	adminID := e.register(t, testAdminPhone)

	draft, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	_, err = e.review.StartReview(ctx, draft.Application.ID, adminID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition, "drafts are not reviewable")

	_, err = e.wizard.SavePersonalInfo(ctx, userID, draft.Application.ID, validPersonalInfo())
	require.NoError(t, err)
	_, err = e.wizard.Submit(ctx, userID, draft.Application.ID, validFinancialDetails())
	require.NoError(t, err)
	id := draft.Application.ID

	_, err = e.review.Approve(ctx, id, adminID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition, "decisions need a review first")

	_, err = e.review.StartReview(ctx, id, adminID)
	require.NoError(t, err)
	_, err = e.review.StartReview(ctx, id, adminID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	_, err = e.review.Approve(ctx, id, adminID)
	require.NoError(t, err)
	_, err = e.review.Reject(ctx, id, adminID, "too late")
	assert.ErrorIs(t, err, ErrInvalidStatusTransition, "approved is terminal")

	stored, err := e.apps.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, stored.Status)
	assert.Empty(t, stored.RejectionReason)
}

func TestReview_UnknownApplication(t *testing.T) {
	e := newTestEnv(t)
	adminID := e.register(t, testAdminPhone)

	_, err := e.review.StartReview(context.Background(), uuid.New(), adminID)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestReview_List(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.register(t, "+33612345678")
	bob := e.register(t, "+33698765432")
	adminID := e.register(t, testAdminPhone)

	submitted := e.submitted(t, alice)
	_, err := e.wizard.StartDraft(ctx, bob, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(2000)})
	require.NoError(t, err)

	all, total, err := e.review.List(ctx, ReviewFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	only, total, err := e.review.List(ctx, ReviewFilter{Status: model.StatusSubmitted})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, only, 1)
	assert.Equal(t, submitted.ID, only[0].ID)
	assert.Equal(t, "+33612345678", only[0].OwnerPhone)

	_, err = e.review.StartReview(ctx, submitted.ID, adminID)
	require.NoError(t, err)
	pending, total, err := e.review.List(ctx, ReviewFilter{Status: model.StatusSubmitted})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, pending)

	paged, total, err := e.review.List(ctx, ReviewFilter{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, paged, 1)

	_, _, err = e.review.List(ctx, ReviewFilter{Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
}
