package handler

import (
	"errors"
	"net/http"

	"fundingportal/internal/middleware"
	"fundingportal/internal/service"
	"fundingportal/internal/validation"
	"fundingportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{service.ErrUnsupportedFileType, http.StatusUnsupportedMediaType},
	{service.ErrInvalidPhoneFormat, http.StatusUnprocessableEntity},
	{service.ErrInvalidPINFormat, http.StatusUnprocessableEntity},
	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrSessionInvalid, http.StatusUnauthorized},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrApplicationNotFound, http.StatusNotFound},
	{service.ErrDocumentNotFound, http.StatusNotFound},
	{service.ErrPhoneAlreadyRegistered, http.StatusConflict},
	{service.ErrNotDraft, http.StatusConflict},
	{service.ErrAlreadySubmitted, http.StatusConflict},
	{service.ErrIncompleteApplication, http.StatusConflict},
	{service.ErrNotSubmitted, http.StatusConflict},
	{service.ErrInvalidStatusTransition, http.StatusConflict},
	{service.ErrApplicationClosed, http.StatusConflict},
	{service.ErrUploadFailed, http.StatusBadGateway},
}

// respondError maps a service error to its HTTP status and writes the error envelope.
// Validation failures carry their field codes in details. Unknown errors are attached
// to the gin context for the request logger and answered with a generic 500.
func respondError(c *gin.Context, err error) {
	verrs, isValidation := validation.AsErrors(err)

	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			if isValidation {
				c.JSON(m.status, response.ErrorWithDetails(m.status, m.err.Error(), verrs))
				return
			}
			c.JSON(m.status, response.Error(m.status, m.err.Error()))
			return
		}
	}

	if isValidation {
		c.JSON(http.StatusUnprocessableEntity, response.ErrorWithDetails(http.StatusUnprocessableEntity, "Validation failed", verrs))
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Internal server error"))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}

// currentUser returns the session's user id, answering 401 when it is missing.
func currentUser(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
	}
	return id, ok
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}
