package validation

import (
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Canonical bounds for the wizard fields.
var (
	MinFundingAmount = decimal.NewFromInt(1_000)
	MaxFundingAmount = decimal.NewFromInt(5_000_000)
	MaxMonthlyIncome = decimal.NewFromInt(1_000_000_000)
)

const (
	// MoneyDecimals is the scale of the amount columns.
	MoneyDecimals        = 2
	MinAge               = 18
	MaxAge               = 100
	FundingReasonMaxLen  = 1000
	PINLength            = 6
	DateLayout           = "2006-01-02"
	DefaultMaxUploadSize = 5 * 1024 * 1024
)

// AllowedMimeTypes are the upload content types accepted for every document slot.
var AllowedMimeTypes = []string{"image/jpeg", "image/png", "application/pdf"}

var (
	rePhone = regexp.MustCompile(`^\+[1-9][0-9]{0,14}$`)
	reName  = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s'-]+$`)
	rePIN   = regexp.MustCompile(`^[0-9]+$`)
)

// Validator runs the per-step schemas. It is safe for concurrent use.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

type Option func(*Validator)

// WithClock fixes the reference time used for age checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func New(opts ...Option) *Validator {
	val := &Validator{v: validator.New(), now: time.Now}
	for _, opt := range opts {
		opt(val)
	}

	// Report JSON field names so error keys line up with request payloads.
	val.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = val.v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return IsValidPhoneNumber(fl.Field().String())
	})
	_ = val.v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return reName.MatchString(fl.Field().String())
	})
	_ = val.v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
	_ = val.v.RegisterValidation("adultage", func(fl validator.FieldLevel) bool {
		dob, err := time.Parse(DateLayout, fl.Field().String())
		if err != nil {
			return false
		}
		age := Age(dob, val.now())
		return age >= MinAge && age <= MaxAge
	})
	_ = val.v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		return rePIN.MatchString(fl.Field().String())
	})

	val.v.RegisterStructValidation(fundingAmountLevel, FundingAmount{})
	val.v.RegisterStructValidation(financialDetailsLevel, FinancialDetails{})
	val.v.RegisterStructValidation(draftLevel, Draft{})

	return val
}

// Now returns the validator's reference time.
func (val *Validator) Now() time.Time { return val.now() }

// FundingAmount is the step-0 payload.
type FundingAmount struct {
	FundingAmount decimal.Decimal `json:"funding_amount"`
}

// PersonalInfo is the step-1 payload.
type PersonalInfo struct {
	FirstName   string `json:"first_name" validate:"required,min=2,max=100,personname"`
	LastName    string `json:"last_name" validate:"required,min=2,max=100,personname"`
	DateOfBirth string `json:"date_of_birth" validate:"required,isodate,adultage"`
	Gender      string `json:"gender,omitempty" validate:"omitempty,oneof=male female other prefer_not_to_say"`
}

// FinancialDetails is the step-2 payload.
type FinancialDetails struct {
	Email              string           `json:"email" validate:"required,email,max=255"`
	ResidentialAddress string           `json:"residential_address" validate:"required,min=10,max=500"`
	CountryOfResidence string           `json:"country_of_residence" validate:"required,min=2,max=100"`
	FundingType        string           `json:"funding_type" validate:"required,min=2,max=100"`
	FundingReason      string           `json:"funding_reason" validate:"required,min=1,max=1000"`
	Profession         string           `json:"profession" validate:"required,min=2,max=100"`
	MonthlyIncome      *decimal.Decimal `json:"monthly_income"`
}

// Normalize trims free-text fields and lower-cases the email.
func (f *FinancialDetails) Normalize() {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.ResidentialAddress = strings.TrimSpace(f.ResidentialAddress)
	f.CountryOfResidence = strings.TrimSpace(f.CountryOfResidence)
	f.FundingType = strings.TrimSpace(f.FundingType)
	f.FundingReason = strings.TrimSpace(f.FundingReason)
	f.Profession = strings.TrimSpace(f.Profession)
}

// Normalize trims the name fields.
func (p *PersonalInfo) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.DateOfBirth = strings.TrimSpace(p.DateOfBirth)
	p.Gender = strings.TrimSpace(p.Gender)
}

// Draft is a partial snapshot of the wizard form saved by autosave.
// Only storage limits are enforced; completeness is checked when the step is submitted.
type Draft struct {
	FundingAmount      *decimal.Decimal `json:"funding_amount,omitempty"`
	FirstName          string           `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName           string           `json:"last_name,omitempty" validate:"omitempty,max=100"`
	DateOfBirth        string           `json:"date_of_birth,omitempty" validate:"omitempty,isodate"`
	Gender             string           `json:"gender,omitempty" validate:"omitempty,oneof=male female other prefer_not_to_say"`
	Email              string           `json:"email,omitempty" validate:"omitempty,max=255"`
	ResidentialAddress string           `json:"residential_address,omitempty" validate:"omitempty,max=500"`
	CountryOfResidence string           `json:"country_of_residence,omitempty" validate:"omitempty,max=100"`
	FundingType        string           `json:"funding_type,omitempty" validate:"omitempty,max=100"`
	FundingReason      string           `json:"funding_reason,omitempty" validate:"omitempty,max=1000"`
	Profession         string           `json:"profession,omitempty" validate:"omitempty,max=100"`
	MonthlyIncome      *decimal.Decimal `json:"monthly_income,omitempty"`
}

// Normalize lower-cases the email and trims text fields.
func (d *Draft) Normalize() {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
}

// Credentials is the login payload.
type Credentials struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	PIN         string `json:"pin" validate:"required,len=6,digits"`
}

// Phone is the registration payload.
type Phone struct {
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

// Profile is the account contact payload. Every field is optional; an empty
// field clears the stored value.
type Profile struct {
	FirstName string `json:"first_name" validate:"omitempty,min=2,max=100,personname"`
	LastName  string `json:"last_name" validate:"omitempty,min=2,max=100,personname"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
}

// Normalize trims the names and lower-cases the email.
func (p *Profile) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}

func fundingAmountLevel(sl validator.StructLevel) {
	in := sl.Current().Interface().(FundingAmount)
	checkAmount(sl, in.FundingAmount, "funding_amount", "FundingAmount")
}

func checkAmount(sl validator.StructLevel, amount decimal.Decimal, field, structField string) {
	switch {
	case !hasMoneyScale(amount):
		sl.ReportError(amount, field, structField, "maxdecimals", "2")
	case amount.LessThan(MinFundingAmount):
		sl.ReportError(amount, field, structField, "minamount", MinFundingAmount.String())
	case amount.GreaterThan(MaxFundingAmount):
		sl.ReportError(amount, field, structField, "maxamount", MaxFundingAmount.String())
	}
}

func checkIncome(sl validator.StructLevel, income decimal.Decimal, field, structField string) {
	switch {
	case !hasMoneyScale(income):
		sl.ReportError(income, field, structField, "maxdecimals", "2")
	case income.IsNegative():
		sl.ReportError(income, field, structField, "minincome", "0")
	case income.GreaterThan(MaxMonthlyIncome):
		sl.ReportError(income, field, structField, "maxincome", MaxMonthlyIncome.String())
	}
}

// hasMoneyScale reports whether d fits the amount columns without rounding.
func hasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyDecimals))
}

func financialDetailsLevel(sl validator.StructLevel) {
	in := sl.Current().Interface().(FinancialDetails)
	if in.MonthlyIncome == nil {
		sl.ReportError(in.MonthlyIncome, "monthly_income", "MonthlyIncome", "required", "")
		return
	}
	checkIncome(sl, *in.MonthlyIncome, "monthly_income", "MonthlyIncome")
}

func draftLevel(sl validator.StructLevel) {
	in := sl.Current().Interface().(Draft)
	if in.FundingAmount != nil {
		checkAmount(sl, *in.FundingAmount, "funding_amount", "FundingAmount")
	}
	if in.MonthlyIncome != nil {
		checkIncome(sl, *in.MonthlyIncome, "monthly_income", "MonthlyIncome")
	}
}

// Step0 validates the funding amount.
func (val *Validator) Step0(in FundingAmount) error {
	return toErrors(val.v.Struct(in))
}

// Step1 validates the personal information step.
func (val *Validator) Step1(in PersonalInfo) error {
	return toErrors(val.v.Struct(in))
}

// Step2 validates the financial step. When fundingTypes is non-empty the
// funding type must be one of its entries.
func (val *Validator) Step2(in FinancialDetails, fundingTypes []string) error {
	errs, _ := toErrors(val.v.Struct(in)).(Errors)
	if in.FundingType != "" && len(fundingTypes) > 0 && !errs.Has("funding_type") && !contains(fundingTypes, in.FundingType) {
		errs = append(errs, FieldError{Field: "funding_type", Code: CodeFundingTypeInvalid})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Draft validates an autosave snapshot.
func (val *Validator) Draft(in Draft) error {
	return toErrors(val.v.Struct(in))
}

// Credentials validates a phone and PIN pair.
func (val *Validator) Credentials(in Credentials) error {
	return toErrors(val.v.Struct(in))
}

// Phone validates a phone number for registration.
func (val *Validator) Phone(in Phone) error {
	return toErrors(val.v.Struct(in))
}

// Profile validates an account profile update.
func (val *Validator) Profile(in Profile) error {
	return toErrors(val.v.Struct(in))
}

// Upload checks a file before anything is written to storage.
func (val *Validator) Upload(documentType string, size, maxSize int64, mimeType string) error {
	var errs Errors
	if !isDocumentType(documentType) {
		errs = append(errs, FieldError{Field: "document_type", Code: CodeInvalidDocumentType})
	}
	if size > maxSize {
		errs = append(errs, FieldError{
			Field:  "file",
			Code:   CodeFileTooLarge,
			Params: map[string]string{"max": formatMB(maxSize)},
		})
	}
	if !IsAllowedMimeType(mimeType) {
		errs = append(errs, FieldError{Field: "file", Code: CodeInvalidFileType})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsValidPhoneNumber reports whether s is "+" followed by 1 to 15 digits, the first nonzero.
func IsValidPhoneNumber(s string) bool {
	return rePhone.MatchString(s)
}

// IsAllowedMimeType reports whether mimeType is one of the accepted upload types.
func IsAllowedMimeType(mimeType string) bool {
	return contains(AllowedMimeTypes, mimeType)
}

// Age returns the number of full years between dob and now, counting a
// birthday as reached only once its calendar day has arrived.
func Age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// ReasonBudget reports how many characters of the funding reason are used and remain.
func ReasonBudget(reason string) (used, remaining int) {
	used = utf8.RuneCountInString(reason)
	return used, FundingReasonMaxLen - used
}

func isDocumentType(t string) bool {
	switch t {
	case "identity_front", "identity_back", "rib":
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func formatMB(n int64) string {
	return decimal.NewFromInt(n).Div(decimal.NewFromInt(1024*1024)).Round(1).String() + "MB"
}
