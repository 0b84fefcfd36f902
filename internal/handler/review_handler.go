package handler

import (
	"context"
	"net/http"

	"fundingportal/internal/middleware"
	"fundingportal/internal/model"
	"fundingportal/internal/service"
	"fundingportal/pkg/pagination"
	"fundingportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReviewHandler struct {
	reviewService service.ReviewService
}

func NewReviewHandler(reviewService service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// RegisterRoutes expects a group that already requires a valid session.
func (h *ReviewHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/admin/applications")
	group.Use(middleware.RequireRole(model.RoleAdmin))
	{
		group.GET("", h.List)
		group.POST("/:id/start-review", h.StartReview)
		group.POST("/:id/approve", h.Approve)
		group.POST("/:id/reject", h.Reject)
	}
}

// List returns applications for review
// @Summary      List applications for review
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "draft, submitted, under_review, approved or rejected"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page{items=[]service.ReviewApplicationResponse}}
// @Failure      403     {object}  response.Response
// @Router       /api/admin/applications [get]
func (h *ReviewHandler) List(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.reviewService.List(c.Request.Context(), service.ReviewFilter{
		Status: c.Query("status"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(items, total)))
}

// StartReview moves a submitted application under review
// @Summary      Start review
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/admin/applications/{id}/start-review [post]
func (h *ReviewHandler) StartReview(c *gin.Context) {
	h.transition(c, h.reviewService.StartReview)
}

// Approve approves an application under review
// @Summary      Approve application
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.ApplicationResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/admin/applications/{id}/approve [post]
func (h *ReviewHandler) Approve(c *gin.Context) {
	h.transition(c, h.reviewService.Approve)
}

// Reject rejects an application under review
// @Summary      Reject application
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Application ID"
// @Param        payload  body      service.RejectRequestDTO  true  "Rejection reason"
// @Success      200      {object}  response.Response{data=service.ApplicationResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/admin/applications/{id}/reject [post]
func (h *ReviewHandler) Reject(c *gin.Context) {
	var req service.RejectRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}
	h.transition(c, func(ctx context.Context, id, reviewerID uuid.UUID) (*service.ApplicationResponse, error) {
		return h.reviewService.Reject(ctx, id, reviewerID, req.Reason)
	})
}

func (h *ReviewHandler) transition(c *gin.Context, apply func(ctx context.Context, id, reviewerID uuid.UUID) (*service.ApplicationResponse, error)) {
	reviewerID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	app, err := apply(c.Request.Context(), id, reviewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}
