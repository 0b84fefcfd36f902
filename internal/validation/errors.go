package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Symbolic error codes. Display layers translate them; params fill placeholders such as {min}.
const (
	CodeRequired           = "validation.required"
	CodeMinLength          = "validation.minLength"
	CodeMaxLength          = "validation.maxLength"
	CodeExactLength        = "validation.exactLength"
	CodeMinAmount          = "validation.minAmount"
	CodeMaxAmount          = "validation.maxAmount"
	CodeMinIncome          = "validation.minIncome"
	CodeMaxIncome          = "validation.maxIncome"
	CodeMaxDecimals        = "validation.maxDecimals"
	CodeInvalidName        = "validation.invalidName"
	CodeInvalidDate        = "validation.invalidDate"
	CodeAgeRequirement     = "validation.ageRequirement"
	CodeInvalidOption      = "validation.invalidOption"
	CodeInvalidEmail       = "validation.invalidEmail"
	CodeInvalidPhone       = "validation.invalidPhoneFormat"
	CodeOTPLength          = "validation.otpLength"
	CodeOTPNumbers         = "validation.otpNumbers"
	CodeFundingTypeInvalid = "validation.fundingTypeInvalid"
	CodeInvalid            = "validation.invalid"

	CodeInvalidDocumentType = "upload.invalidDocumentType"
	CodeFileTooLarge        = "upload.fileTooLarge"
	CodeInvalidFileType     = "upload.invalidFileType"
)

// FieldError is one failed constraint on one field.
type FieldError struct {
	Field  string            `json:"field"`
	Code   string            `json:"code"`
	Params map[string]string `json:"params,omitempty"`
}

// Errors is the set of field failures for one payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+": "+fe.Code)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Has reports whether field has at least one failure.
func (e Errors) Has(field string) bool {
	return e.Code(field) != ""
}

// Code returns the first code reported for field, or "".
func (e Errors) Code(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Code
		}
	}
	return ""
}

// AsErrors extracts validation failures from err, if any.
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

// toErrors maps validator.ValidationErrors to symbolic field errors.
func toErrors(err error) error {
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return Errors{{Field: "_", Code: CodeInvalid}}
	}

	out := make(Errors, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		fe := FieldError{Field: field}
		switch e.Tag() {
		case "required":
			fe.Code = CodeRequired
		case "min":
			fe.Code = CodeMinLength
			fe.Params = map[string]string{"min": e.Param()}
		case "max":
			fe.Code = CodeMaxLength
			fe.Params = map[string]string{"max": e.Param()}
		case "len":
			fe.Code = CodeExactLength
			if field == "pin" {
				fe.Code = CodeOTPLength
			}
			fe.Params = map[string]string{"length": e.Param()}
		case "digits":
			fe.Code = CodeOTPNumbers
		case "minamount":
			fe.Code = CodeMinAmount
			fe.Params = map[string]string{"min": e.Param()}
		case "maxamount":
			fe.Code = CodeMaxAmount
			fe.Params = map[string]string{"max": e.Param()}
		case "minincome":
			fe.Code = CodeMinIncome
			fe.Params = map[string]string{"min": e.Param()}
		case "maxincome":
			fe.Code = CodeMaxIncome
			fe.Params = map[string]string{"max": e.Param()}
		case "maxdecimals":
			fe.Code = CodeMaxDecimals
			fe.Params = map[string]string{"max": e.Param()}
		case "personname":
			fe.Code = CodeInvalidName
		case "isodate":
			fe.Code = CodeInvalidDate
		case "adultage":
			fe.Code = CodeAgeRequirement
			fe.Params = map[string]string{"min": "18", "max": "100"}
		case "oneof":
			fe.Code = CodeInvalidOption
			fe.Params = map[string]string{"options": e.Param()}
		case "email":
			fe.Code = CodeInvalidEmail
		case "phone":
			fe.Code = CodeInvalidPhone
		default:
			fe.Code = CodeInvalid
		}
		out = append(out, fe)
	}
	return out
}
