package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fundingportal/internal/draftqueue"
	"fundingportal/internal/metrics"
	"fundingportal/internal/model"
	"fundingportal/internal/repository"
	"fundingportal/internal/validation"
	"fundingportal/pkg/appnumber"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxNumberAttempts = 5

// --- DTOs ---

type ApplicationResponse struct {
	ID                 uuid.UUID        `json:"id"`
	ApplicationNumber  string           `json:"application_number"`
	Status             string           `json:"status"`
	CurrentStep        int              `json:"current_step"`
	FundingAmount      decimal.Decimal  `json:"funding_amount"`
	FirstName          string           `json:"first_name"`
	LastName           string           `json:"last_name"`
	DateOfBirth        string           `json:"date_of_birth"`
	Gender             string           `json:"gender"`
	Email              string           `json:"email"`
	ResidentialAddress string           `json:"residential_address"`
	CountryOfResidence string           `json:"country_of_residence"`
	FundingType        string           `json:"funding_type"`
	FundingReason      string           `json:"funding_reason"`
	Profession         string           `json:"profession"`
	MonthlyIncome      *decimal.Decimal `json:"monthly_income"`
	LanguagePreference string           `json:"language_preference"`
	Version            int              `json:"version"`
	SubmittedAt        *time.Time       `json:"submitted_at"`
	Step3CompletedAt   *time.Time       `json:"step_3_completed_at"`
	ReviewStartedAt    *time.Time       `json:"review_started_at"`
	DecidedAt          *time.Time       `json:"decided_at"`
	RejectionReason    string           `json:"rejection_reason,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// ResumeResponse tells the wizard where to pick up.
type ResumeResponse struct {
	HasApplication bool                 `json:"has_application"`
	Step           int                  `json:"step"`
	Application    *ApplicationResponse `json:"application"`
}

// StepResult is returned by every wizard write that moves the step pointer.
type StepResult struct {
	Application *ApplicationResponse `json:"application"`
	NextStep    int                  `json:"next_step"`
}

type CreateApplicationRequest struct {
	FundingAmount      decimal.Decimal `json:"funding_amount"`
	LanguagePreference string          `json:"language_preference"`
}

type SaveDraftRequest struct {
	validation.Draft
	CurrentStep int `json:"current_step"`
}

type ConfirmationResponse struct {
	ApplicationID     uuid.UUID    `json:"application_id"`
	ApplicationNumber string       `json:"application_number"`
	UserName          string       `json:"user_name"`
	Status            string       `json:"status"`
	SubmittedAt       *time.Time   `json:"submitted_at"`
	Contact           ContactLinks `json:"contact"`
}

// --- Interface ---

type ApplicationService interface {
	Resume(ctx context.Context, userID uuid.UUID) (*ResumeResponse, error)
	StartDraft(ctx context.Context, userID uuid.UUID, req CreateApplicationRequest) (*StepResult, error)
	SavePersonalInfo(ctx context.Context, userID, id uuid.UUID, req validation.PersonalInfo) (*StepResult, error)
	SaveDraft(ctx context.Context, userID, id uuid.UUID, req SaveDraftRequest) (*ApplicationResponse, error)
	Submit(ctx context.Context, userID, id uuid.UUID, req validation.FinancialDetails) (*StepResult, error)
	Back(ctx context.Context, userID, id uuid.UUID) (*StepResult, error)
	Confirmation(ctx context.Context, userID, id uuid.UUID) (*ConfirmationResponse, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*ApplicationResponse, error)
	List(ctx context.Context, userID uuid.UUID) ([]ApplicationResponse, error)
}

type applicationService struct {
	tx        repository.TransactionManager
	apps      repository.ApplicationRepository
	audit     repository.AuditRepository
	configs   ConfigService
	queue     *draftqueue.Queue
	validator *validation.Validator
	metrics   *metrics.Metrics
	notifier  Notifier
	now       func() time.Time
	log       zerolog.Logger
}

func NewApplicationService(
	tx repository.TransactionManager,
	apps repository.ApplicationRepository,
	audit repository.AuditRepository,
	configs ConfigService,
	queue *draftqueue.Queue,
	v *validation.Validator,
	opts Options,
) ApplicationService {
	opts = opts.withDefaults()
	return &applicationService{
		tx:        tx,
		apps:      apps,
		audit:     audit,
		configs:   configs,
		queue:     queue,
		validator: v,
		metrics:   opts.Metrics,
		notifier:  opts.Notifier,
		now:       opts.Now,
		log:       opts.Logger.With().Str("component", "applications").Logger(),
	}
}

// --- Implementation ---

func (s *applicationService) Resume(ctx context.Context, userID uuid.UUID) (*ResumeResponse, error) {
	app, err := s.apps.LatestActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active application: %w", err)
	}
	if app == nil {
		return &ResumeResponse{Step: model.StepFundingAmount}, nil
	}

	step := app.CurrentStep
	if app.Status == model.StatusSubmitted {
		step = model.StepConfirmation
	}
	return &ResumeResponse{HasApplication: true, Step: step, Application: toApplicationResponse(app)}, nil
}

// StartDraft is the step-0 action. It creates the user's draft, or updates the
// amount of the draft they already have.
func (s *applicationService) StartDraft(ctx context.Context, userID uuid.UUID, req CreateApplicationRequest) (*StepResult, error) {
	if err := s.validator.Step0(validation.FundingAmount{FundingAmount: req.FundingAmount}); err != nil {
		return nil, err
	}
	lang := req.LanguagePreference
	if lang == "" {
		lang = "en"
	}

	var result *StepResult
	err := s.queue.Do(ctx, userID, func() error {
		active, err := s.apps.LatestActive(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load active application: %w", err)
		}
		if active != nil && active.Status != model.StatusDraft {
			return ErrAlreadySubmitted
		}

		if active != nil {
			var app *model.Application
			updErr := s.queue.Do(ctx, active.ID, func() error {
				var err error
				app, err = s.write(ctx, userID, active.ID, func(txCtx context.Context, app *model.Application) (map[string]interface{}, error) {
					if app.Status != model.StatusDraft {
						return nil, ErrAlreadySubmitted
					}
					return map[string]interface{}{
						"funding_amount":      req.FundingAmount,
						"language_preference": lang,
					}, nil
				})
				return err
			})
			if updErr != nil {
				return updErr
			}
			s.metrics.ObserveDraftSave("step")
			result = &StepResult{Application: toApplicationResponse(app), NextStep: model.StepPersonalInfo}
			return nil
		}

		app, createErr := s.create(ctx, userID, req.FundingAmount, lang)
		if createErr != nil {
			return createErr
		}
		result = &StepResult{Application: toApplicationResponse(app), NextStep: model.StepPersonalInfo}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *applicationService) create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, lang string) (*model.Application, error) {
	app := &model.Application{
		UserID:             userID,
		Status:             model.StatusDraft,
		CurrentStep:        model.StepFundingAmount,
		FundingAmount:      amount,
		LanguagePreference: lang,
		Version:            1,
	}

	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		number, err := s.nextNumber(txCtx)
		if err != nil {
			return err
		}
		app.ApplicationNumber = number

		if err := s.apps.Create(txCtx, app); err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		return s.audit.Record(txCtx, &userID, model.ActionCreateApplication, app.ID.String(), app.ApplicationNumber,
			map[string]interface{}{"funding_amount": amount.String()})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveApplicationCreated()
	s.log.Info().
		Str("application_id", app.ID.String()).
		Str("application_number", app.ApplicationNumber).
		Msg("draft application created")
	return app, nil
}

// nextNumber draws application numbers until one is unused.
func (s *applicationService) nextNumber(ctx context.Context) (string, error) {
	prev, err := s.apps.LastNumber(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read last application number: %w", err)
	}
	for i := 0; i < maxNumberAttempts; i++ {
		number, err := appnumber.New(prev)
		if err != nil {
			return "", fmt.Errorf("failed to generate application number: %w", err)
		}
		exists, err := s.apps.NumberExists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("failed to check application number: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	return "", errors.New("could not allocate a unique application number")
}

func (s *applicationService) SavePersonalInfo(ctx context.Context, userID, id uuid.UUID, req validation.PersonalInfo) (*StepResult, error) {
	req.Normalize()
	if err := s.validator.Step1(req); err != nil {
		return nil, err
	}

	var app *model.Application
	err := s.queue.Do(ctx, id, func() error {
		var err error
		app, err = s.write(ctx, userID, id, func(txCtx context.Context, app *model.Application) (map[string]interface{}, error) {
			if app.Status != model.StatusDraft {
				return nil, ErrNotDraft
			}
			return map[string]interface{}{
				"first_name":    req.FirstName,
				"last_name":     req.LastName,
				"date_of_birth": req.DateOfBirth,
				"gender":        req.Gender,
				"current_step":  model.StepFinancialDetails,
			}, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveDraftSave("step")
	return &StepResult{Application: toApplicationResponse(app), NextStep: model.StepFinancialDetails}, nil
}

// SaveDraft persists whatever the form currently holds without moving past the
// step being edited. Empty fields leave stored values untouched.
func (s *applicationService) SaveDraft(ctx context.Context, userID, id uuid.UUID, req SaveDraftRequest) (*ApplicationResponse, error) {
	req.Normalize()
	if err := s.validator.Draft(req.Draft); err != nil {
		return nil, err
	}
	if req.CurrentStep != model.StepPersonalInfo && req.CurrentStep != model.StepFinancialDetails {
		return nil, validation.Errors{{
			Field:  "current_step",
			Code:   validation.CodeInvalidOption,
			Params: map[string]string{"options": "1 2"},
		}}
	}

	fields := draftFields(req.Draft)

	var app *model.Application
	err := s.queue.Do(ctx, id, func() error {
		var err error
		app, err = s.write(ctx, userID, id, func(txCtx context.Context, app *model.Application) (map[string]interface{}, error) {
			if app.Status != model.StatusDraft {
				return nil, ErrNotDraft
			}
			fields["current_step"] = autosaveStep(req.CurrentStep, app.CurrentStep)
			return fields, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveDraftSave("autosave")
	return toApplicationResponse(app), nil
}

// autosaveStep caps the step an autosave may record at the progress the draft
// already reached through validated step saves. Step 1 is always reachable once
// the draft exists; step 2 only after SavePersonalInfo succeeded.
func autosaveStep(requested, persisted int) int {
	reached := persisted
	if reached < model.StepPersonalInfo {
		reached = model.StepPersonalInfo
	}
	if requested > reached {
		return reached
	}
	return requested
}

func draftFields(d validation.Draft) map[string]interface{} {
	fields := map[string]interface{}{}
	if d.FundingAmount != nil {
		fields["funding_amount"] = *d.FundingAmount
	}
	if d.MonthlyIncome != nil {
		fields["monthly_income"] = decimal.NewNullDecimal(*d.MonthlyIncome)
	}
	text := map[string]string{
		"first_name":           d.FirstName,
		"last_name":            d.LastName,
		"date_of_birth":        d.DateOfBirth,
		"gender":               d.Gender,
		"email":                d.Email,
		"residential_address":  d.ResidentialAddress,
		"country_of_residence": d.CountryOfResidence,
		"funding_type":         d.FundingType,
		"funding_reason":       d.FundingReason,
		"profession":           d.Profession,
	}
	for column, value := range text {
		if value != "" {
			fields[column] = value
		}
	}
	return fields
}

// Submit is the step-2 action: it validates the financial details and flips the
// draft to submitted in a single update.
func (s *applicationService) Submit(ctx context.Context, userID, id uuid.UUID, req validation.FinancialDetails) (*StepResult, error) {
	req.Normalize()
	fundingTypes, err := s.configs.FundingTypes(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Step2(req, fundingTypes); err != nil {
		return nil, err
	}

	var app *model.Application
	err = s.queue.Do(ctx, id, func() error {
		var err error
		app, err = s.write(ctx, userID, id, func(txCtx context.Context, app *model.Application) (map[string]interface{}, error) {
			if app.Status != model.StatusDraft {
				return nil, ErrNotDraft
			}
			if !app.HasPersonalInfo() {
				return nil, ErrIncompleteApplication
			}
			if !model.CanTransition(app.Status, model.StatusSubmitted) {
				return nil, ErrInvalidStatusTransition
			}

			now := s.now()
			if auditErr := s.audit.Record(txCtx, &userID, model.ActionSubmitApplication, app.ID.String(), app.ApplicationNumber,
				map[string]interface{}{"funding_type": req.FundingType}); auditErr != nil {
				return nil, auditErr
			}
			return map[string]interface{}{
				"email":                req.Email,
				"residential_address":  req.ResidentialAddress,
				"country_of_residence": req.CountryOfResidence,
				"funding_type":         req.FundingType,
				"funding_reason":       req.FundingReason,
				"profession":           req.Profession,
				"monthly_income":       decimal.NewNullDecimal(*req.MonthlyIncome),
				"status":               model.StatusSubmitted,
				"current_step":         model.StepConfirmation,
				"submitted_at":         now,
				"step_3_completed_at":  now,
			}, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSubmitted()
	notify(s.notifier, app.UserID, Event{
		Type:              EventApplicationUpdated,
		ApplicationID:     app.ID.String(),
		ApplicationNumber: app.ApplicationNumber,
		Status:            app.Status,
		OccurredAt:        s.now(),
	})
	s.log.Info().Str("application_id", app.ID.String()).Msg("application submitted")
	return &StepResult{Application: toApplicationResponse(app), NextStep: model.StepConfirmation}, nil
}

// Back moves a draft's step pointer one step down. Persisted fields are kept.
func (s *applicationService) Back(ctx context.Context, userID, id uuid.UUID) (*StepResult, error) {
	var app *model.Application
	err := s.queue.Do(ctx, id, func() error {
		var err error
		app, err = s.write(ctx, userID, id, func(txCtx context.Context, app *model.Application) (map[string]interface{}, error) {
			if app.Status != model.StatusDraft {
				return nil, ErrNotDraft
			}
			step := app.CurrentStep - 1
			if step < model.StepFundingAmount {
				step = model.StepFundingAmount
			}
			return map[string]interface{}{"current_step": step}, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &StepResult{Application: toApplicationResponse(app), NextStep: app.CurrentStep}, nil
}

func (s *applicationService) Confirmation(ctx context.Context, userID, id uuid.UUID) (*ConfirmationResponse, error) {
	app, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if app.Status == model.StatusDraft {
		return nil, ErrNotSubmitted
	}

	contact, err := s.configs.Contact(ctx)
	if err != nil {
		return nil, err
	}

	name := app.FullName()
	return &ConfirmationResponse{
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		UserName:          name,
		Status:            app.Status,
		SubmittedAt:       app.SubmittedAt,
		Contact:           BuildContactLinks(contact, app.ApplicationNumber, name),
	}, nil
}

func (s *applicationService) Get(ctx context.Context, userID, id uuid.UUID) (*ApplicationResponse, error) {
	app, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return toApplicationResponse(app), nil
}

func (s *applicationService) List(ctx context.Context, userID uuid.UUID) ([]ApplicationResponse, error) {
	apps, err := s.apps.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	result := make([]ApplicationResponse, 0, len(apps))
	for i := range apps {
		result = append(result, *toApplicationResponse(&apps[i]))
	}
	return result, nil
}

// owned loads an application and hides it from anyone but its owner.
func (s *applicationService) owned(ctx context.Context, userID, id uuid.UUID) (*model.Application, error) {
	app, err := s.apps.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app.UserID != userID {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}

type mutation func(txCtx context.Context, app *model.Application) (map[string]interface{}, error)

// write locks the owner's application, lets fn decide the changed columns, applies
// them and returns the reloaded row. Callers must hold the draft queue for id.
func (s *applicationService) write(ctx context.Context, userID, id uuid.UUID, fn mutation) (*model.Application, error) {
	var app *model.Application
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.apps.FindByIDForUpdate(txCtx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrApplicationNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load application: %w", err)
		}
		if current.UserID != userID {
			return ErrApplicationNotFound
		}

		fields, err := fn(txCtx, current)
		if err != nil {
			return err
		}
		if err := s.apps.Update(txCtx, id, fields); err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}

		app, err = s.apps.FindByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func toApplicationResponse(app *model.Application) *ApplicationResponse {
	resp := &ApplicationResponse{
		ID:                 app.ID,
		ApplicationNumber:  app.ApplicationNumber,
		Status:             app.Status,
		CurrentStep:        app.CurrentStep,
		FundingAmount:      app.FundingAmount,
		FirstName:          app.FirstName,
		LastName:           app.LastName,
		DateOfBirth:        app.DateOfBirth,
		Gender:             app.Gender,
		Email:              app.Email,
		ResidentialAddress: app.ResidentialAddress,
		CountryOfResidence: app.CountryOfResidence,
		FundingType:        app.FundingType,
		FundingReason:      app.FundingReason,
		Profession:         app.Profession,
		LanguagePreference: app.LanguagePreference,
		Version:            app.Version,
		SubmittedAt:        app.SubmittedAt,
		Step3CompletedAt:   app.Step3CompletedAt,
		ReviewStartedAt:    app.ReviewStartedAt,
		DecidedAt:          app.DecidedAt,
		RejectionReason:    app.RejectionReason,
		CreatedAt:          app.CreatedAt,
		UpdatedAt:          app.UpdatedAt,
	}
	if app.MonthlyIncome.Valid {
		income := app.MonthlyIncome.Decimal
		resp.MonthlyIncome = &income
	}
	return resp
}
