package portalclient

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Redirect struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type RegisterResult struct {
	UserID  string `json:"user_id"`
	PIN     string `json:"pin"`
	Message string `json:"message"`
}

// LoginResult carries either a session or a regenerated PIN.
type LoginResult struct {
	UserID         string     `json:"user_id"`
	SessionToken   string     `json:"session_token"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Role           string     `json:"role"`
	PINRegenerated bool       `json:"pin_regenerated"`
	NewPIN         string     `json:"new_pin"`
	Redirect       *Redirect  `json:"redirect"`
	Message        string     `json:"message"`
}

type SessionInfo struct {
	IsValid   bool      `json:"is_valid"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Application struct {
	ID                 string           `json:"id"`
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
	Version            int              `json:"version"`
	SubmittedAt        *time.Time       `json:"submitted_at"`
	RejectionReason    string           `json:"rejection_reason"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type resumeResult struct {
	HasApplication bool         `json:"has_application"`
	Step           int          `json:"step"`
	Application    *Application `json:"application"`
}

type stepResult struct {
	Application *Application `json:"application"`
	NextStep    int          `json:"next_step"`
}

type ContactLinks struct {
	WhatsAppNumber string `json:"whatsapp_number"`
	WhatsAppURL    string `json:"whatsapp_url"`
	ContactEmail   string `json:"contact_email"`
	EmailURL       string `json:"email_url"`
}

type Confirmation struct {
	ApplicationID     string       `json:"application_id"`
	ApplicationNumber string       `json:"application_number"`
	UserName          string       `json:"user_name"`
	Status            string       `json:"status"`
	SubmittedAt       *time.Time   `json:"submitted_at"`
	Contact           ContactLinks `json:"contact"`
}

type Document struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id"`
	DocumentType  string     `json:"document_type"`
	FileName      string     `json:"file_name"`
	FilePath      string     `json:"file_path"`
	FileSize      int64      `json:"file_size"`
	MimeType      string     `json:"mime_type"`
	UploadStatus  string     `json:"upload_status"`
	UploadedAt    *time.Time `json:"uploaded_at"`
}

type Documents struct {
	Documents []Document          `json:"documents"`
	Slots     map[string]Document `json:"slots"`
	Complete  bool                `json:"complete"`
}

type PublicConfig struct {
	FundingTypes   []string `json:"funding_types"`
	MaxUploadBytes int64    `json:"max_upload_bytes"`
	Contact        *struct {
		WhatsAppNumber string `json:"whatsapp_number"`
		ContactEmail   string `json:"contact_email"`
	} `json:"contact"`
	AllowedMimeTypes    []string `json:"allowed_mime_types"`
	FundingReasonMaxLen int      `json:"funding_reason_max_length"`
}

type ProgressStep struct {
	ID        int    `json:"id"`
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

type TimelineEvent struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Timestamp    time.Time `json:"timestamp"`
	RelativeTime string    `json:"relative_time"`
}

type Dashboard struct {
	Application  *Application        `json:"application"`
	Applications []Application       `json:"applications"`
	Documents    []Document          `json:"documents"`
	Slots        map[string]Document `json:"slots"`
	Progress     struct {
		Steps          []ProgressStep `json:"steps"`
		CompletedSteps int            `json:"completed_steps"`
		Percentage     int            `json:"percentage"`
	} `json:"progress"`
	Timeline []TimelineEvent `json:"timeline"`
	Stats    struct {
		Total       int64 `json:"total"`
		Draft       int64 `json:"draft"`
		Submitted   int64 `json:"submitted"`
		UnderReview int64 `json:"under_review"`
		Approved    int64 `json:"approved"`
		Rejected    int64 `json:"rejected"`
	} `json:"stats"`
	Contact ContactLinks `json:"contact"`
}

// PersonalInfo is the step-1 payload.
type PersonalInfo struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender,omitempty"`
}

// FinancialDetails is the step-2 payload. MonthlyIncome is required by the portal.
type FinancialDetails struct {
	Email              string           `json:"email"`
	ResidentialAddress string           `json:"residential_address"`
	CountryOfResidence string           `json:"country_of_residence"`
	FundingType        string           `json:"funding_type"`
	FundingReason      string           `json:"funding_reason"`
	Profession         string           `json:"profession"`
	MonthlyIncome      *decimal.Decimal `json:"monthly_income"`
}

// draft is the autosave snapshot; empty fields leave stored values untouched.
type draft struct {
	FundingAmount      *decimal.Decimal `json:"funding_amount,omitempty"`
	FirstName          string           `json:"first_name,omitempty"`
	LastName           string           `json:"last_name,omitempty"`
	DateOfBirth        string           `json:"date_of_birth,omitempty"`
	Gender             string           `json:"gender,omitempty"`
	Email              string           `json:"email,omitempty"`
	ResidentialAddress string           `json:"residential_address,omitempty"`
	CountryOfResidence string           `json:"country_of_residence,omitempty"`
	FundingType        string           `json:"funding_type,omitempty"`
	FundingReason      string           `json:"funding_reason,omitempty"`
	Profession         string           `json:"profession,omitempty"`
	MonthlyIncome      *decimal.Decimal `json:"monthly_income,omitempty"`
	CurrentStep        int              `json:"current_step"`
}

// FieldError is one rejected field with its symbolic code, such as
// "validation.required" or "upload.fileTooLarge", and the code's parameters.
type FieldError struct {
	Field  string            `json:"field"`
	Code   string            `json:"code"`
	Params map[string]string `json:"params,omitempty"`
}

// FieldErrors is returned by checks that run locally before a request is sent.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Code)
	}
	return "portalclient: " + strings.Join(parts, ", ")
}

// Code returns the first code reported for field, or "".
func (e FieldErrors) Code(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Code
		}
	}
	return ""
}

// Profile is the account behind the session.
type Profile struct {
	UserID      string     `json:"user_id"`
	PhoneNumber string     `json:"phone_number"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	LastLogin   *time.Time `json:"last_login"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ProfileUpdate replaces the contact fields of the account. Empty fields clear them.
type ProfileUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
