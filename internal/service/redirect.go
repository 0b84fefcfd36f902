package service

import (
	"fmt"

	"fundingportal/internal/model"
)

// Post-login redirect reasons
const (
	RedirectNewUser               = "new_user"
	RedirectIncompleteApplication = "incomplete_application"
	RedirectHasApplication        = "has_application"
)

// Redirect tells the client where to land after a successful login.
type Redirect struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// RedirectFor derives the landing page from the user's most recent application.
func RedirectFor(latest *model.Application) Redirect {
	if latest == nil {
		return Redirect{Path: "/application/step-0", Reason: RedirectNewUser}
	}
	if latest.Status != model.StatusDraft || latest.CurrentStep > model.StepConfirmation {
		return Redirect{Path: "/dashboard", Reason: RedirectHasApplication}
	}
	return Redirect{
		Path:   fmt.Sprintf("/application/step-%d", latest.CurrentStep),
		Reason: RedirectIncompleteApplication,
	}
}
