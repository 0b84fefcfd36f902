package service

import (
	"context"
	"sync"
	"testing"

	"fundingportal/internal/model"
	"fundingportal/internal/validation"
	"fundingportal/pkg/appnumber"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizard_RoundTrip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	assert.Equal(t, model.StepPersonalInfo, created.NextStep)
	assert.Equal(t, model.StatusDraft, created.Application.Status)
	assert.Equal(t, model.StepFundingAmount, created.Application.CurrentStep)
	assert.True(t, appnumber.Valid(created.Application.ApplicationNumber))
	id := created.Application.ID

	step1, err := e.wizard.SavePersonalInfo(ctx, userID, id, validPersonalInfo())
	require.NoError(t, err)
	assert.Equal(t, model.StepFinancialDetails, step1.NextStep)
	assert.Equal(t, model.StepFinancialDetails, step1.Application.CurrentStep)

	step2, err := e.wizard.Submit(ctx, userID, id, validFinancialDetails())
	require.NoError(t, err)
	assert.Equal(t, model.StepConfirmation, step2.NextStep)

	app, err := e.apps.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, app.Status)
	assert.Equal(t, model.StepConfirmation, app.CurrentStep)
	require.NotNil(t, app.SubmittedAt)
	require.NotNil(t, app.Step3CompletedAt)
	assert.True(t, app.FundingAmount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "Jean", app.FirstName)
	assert.Equal(t, "Dupont", app.LastName)
	assert.Equal(t, "1990-03-10", app.DateOfBirth)
	assert.Equal(t, "male", app.Gender)
	assert.Equal(t, "jean.dupont@example.com", app.Email)
	assert.Equal(t, "12 rue de la Paix, Paris", app.ResidentialAddress)
	assert.Equal(t, "France", app.CountryOfResidence)
	assert.Equal(t, "business_creation", app.FundingType)
	assert.Equal(t, "Open a bakery in my neighbourhood", app.FundingReason)
	assert.Equal(t, "Baker", app.Profession)
	require.True(t, app.MonthlyIncome.Valid)
	assert.True(t, app.MonthlyIncome.Decimal.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, 3, app.Version, "create plus two writes")

	events := e.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, userID.String(), events[0].UserID)
	assert.Equal(t, model.StatusSubmitted, events[0].Event.Status)
}

func TestWizard_ResumeIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	empty, err := e.wizard.Resume(ctx, userID)
	require.NoError(t, err)
	assert.False(t, empty.HasApplication)
	assert.Equal(t, model.StepFundingAmount, empty.Step)

	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(7500)})
	require.NoError(t, err)
	_, err = e.wizard.SavePersonalInfo(ctx, userID, created.Application.ID, validPersonalInfo())
	require.NoError(t, err)

	first, err := e.wizard.Resume(ctx, userID)
	require.NoError(t, err)
	second, err := e.wizard.Resume(ctx, userID)
	require.NoError(t, err)

	assert.True(t, first.HasApplication)
	assert.Equal(t, model.StepFinancialDetails, first.Step)
	assert.Equal(t, first, second)
	assert.Equal(t, "Jean", second.Application.FirstName)
}

func TestWizard_ResumeSubmittedJumpsToConfirmation(t *testing.T) {
	e := newTestEnv(t)
	userID := e.register(t, "+33612345678")
	app := e.submitted(t, userID)

	res, err := e.wizard.Resume(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, model.StepConfirmation, res.Step)
	assert.Equal(t, app.ID, res.Application.ID)
}

func TestWizard_StartDraftReusesExistingDraft(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	first, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	second, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(9000)})
	require.NoError(t, err)

	assert.Equal(t, first.Application.ID, second.Application.ID)
	assert.Equal(t, first.Application.ApplicationNumber, second.Application.ApplicationNumber)
	assert.True(t, second.Application.FundingAmount.Equal(decimal.NewFromInt(9000)))

	all, err := e.wizard.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestWizard_StartDraftValidatesAmount(t *testing.T) {
	e := newTestEnv(t)
	userID := e.register(t, "+33612345678")

	_, err := e.wizard.StartDraft(context.Background(), userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(999)})
	verrs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, validation.CodeMinAmount, verrs.Code("funding_amount"))

	_, err = e.wizard.StartDraft(context.Background(), userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5_000_001)})
	verrs, ok = validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, validation.CodeMaxAmount, verrs.Code("funding_amount"))
}

func TestWizard_StartDraftWhileSubmitted(t *testing.T) {
	e := newTestEnv(t)
	userID := e.register(t, "+33612345678")
	e.submitted(t, userID)

	_, err := e.wizard.StartDraft(context.Background(), userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestWizard_NewDraftAfterDecision(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")
	adminID := e.register(t, testAdminPhone)
	app := e.submitted(t, userID)

	_, err := e.review.StartReview(ctx, app.ID, adminID)
	require.NoError(t, err)
	_, err = e.review.Reject(ctx, app.ID, adminID, "incomplete file")
	require.NoError(t, err)

	next, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(2000)})
	require.NoError(t, err)
	assert.NotEqual(t, app.ID, next.Application.ID)
	assert.NotEqual(t, app.ApplicationNumber, next.Application.ApplicationNumber)
}

func TestWizard_OwnershipIsEnforced(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.register(t, "+33612345678")
	other := e.register(t, "+33698765432")

	created, err := e.wizard.StartDraft(ctx, owner, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	id := created.Application.ID

	_, err = e.wizard.Get(ctx, other, id)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
	_, err = e.wizard.SavePersonalInfo(ctx, other, id, validPersonalInfo())
	assert.ErrorIs(t, err, ErrApplicationNotFound)
	_, err = e.wizard.Back(ctx, other, id)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
	_, err = e.wizard.Get(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestWizard_SubmitRequiresPersonalInfo(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)

	_, err = e.wizard.Submit(ctx, userID, created.Application.ID, validFinancialDetails())
	assert.ErrorIs(t, err, ErrIncompleteApplication)

	app, err := e.apps.FindByID(ctx, created.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, app.Status, "nothing persisted on failure")
	assert.Empty(t, app.Email)
}

func TestWizard_SubmitRejectsUnknownFundingType(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	_, err = e.wizard.SavePersonalInfo(ctx, userID, created.Application.ID, validPersonalInfo())
	require.NoError(t, err)

	in := validFinancialDetails()
	in.FundingType = "space_travel"
	_, err = e.wizard.Submit(ctx, userID, created.Application.ID, in)
	verrs, ok := validation.AsErrors(err)
	require.True(t, ok)
	assert.Equal(t, validation.CodeFundingTypeInvalid, verrs.Code("funding_type"))
}

func TestWizard_SubmitTwice(t *testing.T) {
	e := newTestEnv(t)
	userID := e.register(t, "+33612345678")
	app := e.submitted(t, userID)

	_, err := e.wizard.Submit(context.Background(), userID, app.ID, validFinancialDetails())
	assert.ErrorIs(t, err, ErrNotDraft)
	_, err = e.wizard.SaveDraft(context.Background(), userID, app.ID, SaveDraftRequest{CurrentStep: 2})
	assert.ErrorIs(t, err, ErrNotDraft)
}

func TestWizard_SaveDraftKeepsUntouchedFields(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	id := created.Application.ID
	_, err = e.wizard.SavePersonalInfo(ctx, userID, id, validPersonalInfo())
	require.NoError(t, err)

	income := decimal.NewFromInt(1200)
	saved, err := e.wizard.SaveDraft(ctx, userID, id, SaveDraftRequest{
		Draft:       validation.Draft{Email: "  Partial@Example.COM ", MonthlyIncome: &income},
		CurrentStep: model.StepFinancialDetails,
	})
	require.NoError(t, err)
	assert.Equal(t, "partial@example.com", saved.Email)
	assert.Equal(t, "Jean", saved.FirstName, "fields absent from the snapshot are kept")
	require.NotNil(t, saved.MonthlyIncome)
	assert.True(t, saved.MonthlyIncome.Equal(income))
	assert.Equal(t, model.StatusDraft, saved.Status)
	assert.Equal(t, model.StepFinancialDetails, saved.CurrentStep)
}

func TestWizard_SaveDraftRejectsStepOutsideAutosaveRange(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")
	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)

	for _, step := range []int{0, 3} {
		_, err := e.wizard.SaveDraft(ctx, userID, created.Application.ID, SaveDraftRequest{CurrentStep: step})
		verrs, ok := validation.AsErrors(err)
		require.True(t, ok, step)
		assert.Equal(t, validation.CodeInvalidOption, verrs.Code("current_step"))
	}
}

func TestWizard_SaveDraftCannotSkipPersonalInfo(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")
	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	id := created.Application.ID

	saved, err := e.wizard.SaveDraft(ctx, userID, id, SaveDraftRequest{
		Draft:       validation.Draft{Email: "early@example.com"},
		CurrentStep: model.StepFinancialDetails,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StepPersonalInfo, saved.CurrentStep)
	assert.Equal(t, "early@example.com", saved.Email, "the snapshot itself is still stored")

	resumed, err := e.wizard.Resume(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.StepPersonalInfo, resumed.Step)

	_, err = e.wizard.SavePersonalInfo(ctx, userID, id, validPersonalInfo())
	require.NoError(t, err)
	saved, err = e.wizard.SaveDraft(ctx, userID, id, SaveDraftRequest{CurrentStep: model.StepFinancialDetails})
	require.NoError(t, err)
	assert.Equal(t, model.StepFinancialDetails, saved.CurrentStep)

	_, err = e.wizard.Back(ctx, userID, id)
	require.NoError(t, err)
	saved, err = e.wizard.SaveDraft(ctx, userID, id, SaveDraftRequest{CurrentStep: model.StepFinancialDetails})
	require.NoError(t, err)
	assert.Equal(t, model.StepPersonalInfo, saved.CurrentStep, "autosave never moves the draft forward")
}

func TestAutosaveStep(t *testing.T) {
	tests := []struct{ requested, persisted, want int }{
		{1, 0, 1},
		{2, 0, 1},
		{2, 1, 1},
		{1, 2, 1},
		{2, 2, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, autosaveStep(tt.requested, tt.persisted), "%+v", tt)
	}
}

func TestWizard_SubmitRequiresMonthlyIncome(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")
	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	id := created.Application.ID
	_, err = e.wizard.SavePersonalInfo(ctx, userID, id, validPersonalInfo())
	require.NoError(t, err)

	details := validFinancialDetails()
	details.MonthlyIncome = nil
	_, err = e.wizard.Submit(ctx, userID, id, details)
	verrs, ok := validation.AsErrors(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, validation.CodeRequired, verrs.Code("monthly_income"))

	app, err := e.apps.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, app.Status)
	assert.False(t, app.MonthlyIncome.Valid)
}

func TestWizard_BackFloorsAtZero(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	id := created.Application.ID
	_, err = e.wizard.SavePersonalInfo(ctx, userID, id, validPersonalInfo())
	require.NoError(t, err)

	for _, want := range []int{1, 0, 0} {
		res, err := e.wizard.Back(ctx, userID, id)
		require.NoError(t, err)
		assert.Equal(t, want, res.NextStep)
	}

	app, err := e.wizard.Get(ctx, userID, id)
	require.NoError(t, err)
	assert.Equal(t, "Jean", app.FirstName, "going back never reverts fields")
}

func TestWizard_ConcurrentWritesAreSerialized(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	id := created.Application.ID

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.wizard.SaveDraft(ctx, userID, id, SaveDraftRequest{
				Draft:       validation.Draft{Profession: "Baker"},
				CurrentStep: model.StepPersonalInfo,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	app, err := e.apps.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1+writers, app.Version, "no write was lost")
	assert.Zero(t, e.queue.Pending(id))
}

func TestWizard_Confirmation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.register(t, "+33612345678")

	created, err := e.wizard.StartDraft(ctx, userID, CreateApplicationRequest{FundingAmount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	_, err = e.wizard.Confirmation(ctx, userID, created.Application.ID)
	assert.ErrorIs(t, err, ErrNotSubmitted)

	_, err = e.wizard.SavePersonalInfo(ctx, userID, created.Application.ID, validPersonalInfo())
	require.NoError(t, err)
	_, err = e.wizard.Submit(ctx, userID, created.Application.ID, validFinancialDetails())
	require.NoError(t, err)

	conf, err := e.wizard.Confirmation(ctx, userID, created.Application.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Application.ApplicationNumber, conf.ApplicationNumber)
	assert.Equal(t, "Jean Dupont", conf.UserName)
	assert.Contains(t, conf.Contact.WhatsAppURL, "https://wa.me/33600000000?text=")
	assert.Contains(t, conf.Contact.WhatsAppURL, conf.ApplicationNumber)
	assert.Contains(t, conf.Contact.WhatsAppURL, "Jean%20Dupont")
	assert.Contains(t, conf.Contact.EmailURL, "mailto:support@example.com?subject=")
}
