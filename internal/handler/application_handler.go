package handler

import (
	"net/http"

	"fundingportal/internal/service"
	"fundingportal/internal/validation"
	"fundingportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	applicationService service.ApplicationService
}

func NewApplicationHandler(applicationService service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applicationService: applicationService}
}

// RegisterRoutes expects a group that already requires a valid session.
func (h *ApplicationHandler) RegisterRoutes(router *gin.RouterGroup) {
	apps := router.Group("/api/applications")
	{
		apps.GET("/current", h.Current)
		apps.GET("", h.List)
		apps.POST("", h.Start)
		apps.GET("/:id", h.Get)
		apps.PUT("/:id/personal", h.SavePersonalInfo)
		apps.PATCH("/:id/draft", h.SaveDraft)
		apps.POST("/:id/submit", h.Submit)
		apps.POST("/:id/back", h.Back)
		apps.GET("/:id/confirmation", h.Confirmation)
	}
}

// Current returns the application the wizard should resume
// @Summary      Resume wizard
// @Description  Returns the latest draft or submitted application and the step to resume at. Submitted applications resume at the confirmation step.
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.ResumeResponse}
// @Failure      401  {object}  response.Response
// @Router       /api/applications/current [get]
func (h *ApplicationHandler) Current(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := h.applicationService.Resume(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// List returns every application of the caller, newest first
// @Summary      List my applications
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ApplicationResponse}
// @Router       /api/applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	apps, err := h.applicationService.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, apps))
}

// Get returns one application of the caller
// @Summary      Get application
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	app, err := h.applicationService.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// Start saves the funding amount (step 0)
// @Summary      Start application
// @Description  Creates a draft with the requested amount, or updates the amount of the caller's existing draft.
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateApplicationRequest  true  "Funding amount"
// @Success      201      {object}  response.Response{data=service.StepResult}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/applications [post]
func (h *ApplicationHandler) Start(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req service.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}
	res, err := h.applicationService.StartDraft(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// SavePersonalInfo saves step 1
// @Summary      Save personal information
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Application ID"
// @Param        payload  body      validation.PersonalInfo  true  "Personal information"
// @Success      200      {object}  response.Response{data=service.StepResult}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/applications/{id}/personal [put]
func (h *ApplicationHandler) SavePersonalInfo(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req validation.PersonalInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}
	res, err := h.applicationService.SavePersonalInfo(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// SaveDraft persists a partial snapshot of the form
// @Summary      Autosave draft
// @Description  Persists the non-empty fields of the snapshot and the step pointer. Only drafts accept it.
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Application ID"
// @Param        payload  body      service.SaveDraftRequest  true  "Draft snapshot"
// @Success      200      {object}  response.Response{data=service.ApplicationResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/applications/{id}/draft [patch]
func (h *ApplicationHandler) SaveDraft(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.SaveDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}
	app, err := h.applicationService.SaveDraft(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// Submit saves step 2 and submits the application
// @Summary      Submit application
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Application ID"
// @Param        payload  body      validation.FinancialDetails  true  "Financial details"
// @Success      200      {object}  response.Response{data=service.StepResult}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/applications/{id}/submit [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req validation.FinancialDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}
	res, err := h.applicationService.Submit(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Back moves the step pointer back by one
// @Summary      Previous step
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.StepResult}
// @Failure      409  {object}  response.Response
// @Router       /api/applications/{id}/back [post]
func (h *ApplicationHandler) Back(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.applicationService.Back(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Confirmation returns the step-3 summary and contact links
// @Summary      Confirmation
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.ConfirmationResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/applications/{id}/confirmation [get]
func (h *ApplicationHandler) Confirmation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.applicationService.Confirmation(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
