package service

import "errors"

var (
	// Authentication
	ErrInvalidPhoneFormat     = errors.New("invalid phone number format")
	ErrPhoneAlreadyRegistered = errors.New("phone number already registered")
	ErrInvalidCredentials     = errors.New("invalid phone number or PIN")
	ErrInvalidPINFormat       = errors.New("PIN must be exactly 6 digits")
	ErrSessionInvalid         = errors.New("session is invalid or expired")
	ErrForbidden              = errors.New("access denied")

	// Applications
	ErrApplicationNotFound     = errors.New("application not found")
	ErrNotDraft                = errors.New("application is no longer a draft")
	ErrAlreadySubmitted        = errors.New("an application has already been submitted")
	ErrIncompleteApplication   = errors.New("personal information must be saved before submitting")
	ErrNotSubmitted            = errors.New("application has not been submitted yet")
	ErrInvalidStatusTransition = errors.New("invalid application status transition")
	ErrApplicationClosed       = errors.New("application is closed")

	// Uploads
	ErrFileTooLarge        = errors.New("file is too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUploadFailed        = errors.New("upload failed")
	ErrDocumentNotFound    = errors.New("document not found")
)
