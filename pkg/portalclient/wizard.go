package portalclient

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"
)

// Wizard steps
const (
	StepFundingAmount    = 0
	StepPersonalInfo     = 1
	StepFinancialDetails = 2
	StepConfirmation     = 3
)

// ErrNoApplication is returned by wizard calls that need a started application.
var ErrNoApplication = errors.New("portalclient: no application started")

// Form is the wizard's local copy of what the user entered.
type Form struct {
	FundingAmount decimal.Decimal
	Personal      PersonalInfo
	Financial     FinancialDetails
}

// Wizard holds the form state and step pointer of one application. The step
// only moves after the server accepted the write. All writes share one mutex,
// so autosaves and step saves never interleave.
type Wizard struct {
	c *Client

	writeMu sync.Mutex

	mu   sync.RWMutex
	step int
	app  *Application
	form Form
}

func (c *Client) Wizard() *Wizard {
	return &Wizard{c: c}
}

// Open resumes the latest draft or submitted application, if any.
func (w *Wizard) Open(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	var res resumeResult
	if err := w.c.authed(ctx, http.MethodGet, "/api/applications/current", nil, &res); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !res.HasApplication || res.Application == nil {
		w.step, w.app, w.form = StepFundingAmount, nil, Form{}
		return nil
	}
	w.step = res.Step
	w.setApplicationLocked(res.Application)
	return nil
}

func (w *Wizard) Step() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.step
}

// Application returns a copy of the last server view of the application, or nil.
func (w *Wizard) Application() *Application {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.app == nil {
		return nil
	}
	cp := *w.app
	return &cp
}

func (w *Wizard) Form() Form {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.form
}

// EditPersonal changes the local step-1 fields without saving them.
func (w *Wizard) EditPersonal(p PersonalInfo) {
	w.mu.Lock()
	w.form.Personal = p
	w.mu.Unlock()
}

// EditFinancial changes the local step-2 fields without saving them.
func (w *Wizard) EditFinancial(f FinancialDetails) {
	w.mu.Lock()
	w.form.Financial = f
	w.mu.Unlock()
}

// StartDraft saves the funding amount (step 0) and moves to step 1.
func (w *Wizard) StartDraft(ctx context.Context, amount decimal.Decimal) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	var res stepResult
	err := w.c.authed(ctx, http.MethodPost, "/api/applications", map[string]interface{}{"funding_amount": amount}, &res)
	if err != nil {
		return err
	}
	w.advance(res)
	return nil
}

// SavePersonalInfo saves step 1 and moves to step 2.
func (w *Wizard) SavePersonalInfo(ctx context.Context, p PersonalInfo) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	id, err := w.applicationID()
	if err != nil {
		return err
	}
	var res stepResult
	if err := w.c.authed(ctx, http.MethodPut, "/api/applications/"+id+"/personal", p, &res); err != nil {
		return err
	}
	w.advance(res)
	return nil
}

// Submit saves step 2, submits the application and moves to the confirmation step.
func (w *Wizard) Submit(ctx context.Context, f FinancialDetails) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	id, err := w.applicationID()
	if err != nil {
		return err
	}
	var res stepResult
	if err := w.c.authed(ctx, http.MethodPost, "/api/applications/"+id+"/submit", f, &res); err != nil {
		return err
	}
	w.advance(res)
	return nil
}

// Back moves one step back, never below step 0. Form fields are kept.
func (w *Wizard) Back(ctx context.Context) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	if w.step <= StepFundingAmount {
		w.step = StepFundingAmount
		w.mu.Unlock()
		return StepFundingAmount, nil
	}
	if w.app == nil {
		w.step--
		step := w.step
		w.mu.Unlock()
		return step, nil
	}
	id := w.app.ID
	w.mu.Unlock()

	var res stepResult
	if err := w.c.authed(ctx, http.MethodPost, "/api/applications/"+id+"/back", nil, &res); err != nil {
		return w.Step(), err
	}
	w.advance(res)
	return w.Step(), nil
}

// SaveDraft persists the current form and step. It is a no-op outside steps 1 and 2.
func (w *Wizard) SaveDraft(ctx context.Context) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	if w.app == nil || (w.step != StepPersonalInfo && w.step != StepFinancialDetails) {
		w.mu.RUnlock()
		return nil
	}
	id := w.app.ID
	payload := draftOf(w.form, w.step)
	w.mu.RUnlock()

	var app Application
	if err := w.c.authed(ctx, http.MethodPatch, "/api/applications/"+id+"/draft", payload, &app); err != nil {
		return err
	}
	w.mu.Lock()
	w.app = &app
	w.mu.Unlock()
	return nil
}

// Confirmation fetches the step-3 summary with contact links.
func (w *Wizard) Confirmation(ctx context.Context) (*Confirmation, error) {
	id, err := w.applicationID()
	if err != nil {
		return nil, err
	}
	var conf Confirmation
	if err := w.c.authed(ctx, http.MethodGet, "/api/applications/"+id+"/confirmation", nil, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func draftOf(f Form, step int) draft {
	d := draft{
		FirstName:          f.Personal.FirstName,
		LastName:           f.Personal.LastName,
		DateOfBirth:        f.Personal.DateOfBirth,
		Gender:             f.Personal.Gender,
		Email:              f.Financial.Email,
		ResidentialAddress: f.Financial.ResidentialAddress,
		CountryOfResidence: f.Financial.CountryOfResidence,
		FundingType:        f.Financial.FundingType,
		FundingReason:      f.Financial.FundingReason,
		Profession:         f.Financial.Profession,
		CurrentStep:        step,
	}
	if !f.FundingAmount.IsZero() {
		amount := f.FundingAmount
		d.FundingAmount = &amount
	}
	if f.Financial.MonthlyIncome != nil {
		income := *f.Financial.MonthlyIncome
		d.MonthlyIncome = &income
	}
	return d
}

func (w *Wizard) applicationID() (string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.app == nil {
		return "", ErrNoApplication
	}
	return w.app.ID, nil
}

func (w *Wizard) advance(res stepResult) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = res.NextStep
	if res.Application != nil {
		w.setApplicationLocked(res.Application)
	}
}

func (w *Wizard) setApplicationLocked(app *Application) {
	w.app = app
	w.form.FundingAmount = app.FundingAmount
	w.form.Personal = PersonalInfo{
		FirstName:   app.FirstName,
		LastName:    app.LastName,
		DateOfBirth: app.DateOfBirth,
		Gender:      app.Gender,
	}
	w.form.Financial = FinancialDetails{
		Email:              app.Email,
		ResidentialAddress: app.ResidentialAddress,
		CountryOfResidence: app.CountryOfResidence,
		FundingType:        app.FundingType,
		FundingReason:      app.FundingReason,
		Profession:         app.Profession,
	}
	if app.MonthlyIncome != nil {
		income := *app.MonthlyIncome
		w.form.Financial.MonthlyIncome = &income
	}
}
