package handler

import (
	"net/http"

	"fundingportal/internal/middleware"
	"fundingportal/internal/service"
	"fundingportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService service.AuthService
	authn       *middleware.Authenticator
	limiter     gin.HandlerFunc
}

// NewAuthHandler wires the auth endpoints. limiter guards register and login; nil disables it.
func NewAuthHandler(authService service.AuthService, authn *middleware.Authenticator, limiter gin.HandlerFunc) *AuthHandler {
	if limiter == nil {
		limiter = func(c *gin.Context) { c.Next() }
	}
	return &AuthHandler{authService: authService, authn: authn, limiter: limiter}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", h.limiter, h.Register)
		auth.POST("/login", h.limiter, h.Login)
		auth.GET("/session", h.Session)
		auth.POST("/logout", h.Logout)
	}
}

// Register creates an account for a phone number and returns its PIN
// @Summary      Register
// @Description  Creates an account for a phone number. The generated 6-digit PIN is returned exactly once.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterRequest  true  "Phone number in international format"
// @Success      201      {object}  response.Response{data=service.RegisterResponse}
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// Login checks a phone number and PIN
// @Summary      Login
// @Description  Authenticates with phone number and PIN. Either issues a session (also set as an HttpOnly cookie) or, when the PIN expired or was locked by failed attempts, returns a new PIN and no session.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      401      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	res, err := h.authService.Authenticate(c.Request.Context(), req, service.ClientMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if res.SessionToken != "" && res.ExpiresAt != nil {
		h.authn.SetSessionCookie(c, res.SessionToken, *res.ExpiresAt)
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Session reports whether the caller's session is still valid
// @Summary      Validate session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200      {object}  response.Response{data=service.SessionInfo}
// @Failure      401      {object}  response.Response
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c *gin.Context) {
	info, err := h.authService.ValidateSession(c.Request.Context(), middleware.TokenFromRequest(c))
	if err != nil {
		h.authn.ClearSessionCookie(c)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, info))
}

// Logout revokes the caller's session
// @Summary      Logout
// @Description  Revokes the session and clears the cookie. Calling it without a valid session is not an error.
// @Tags         auth
// @Produce      json
// @Success      200      {object}  response.Response
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.TokenFromRequest(c)); err != nil {
		respondError(c, err)
		return
	}
	h.authn.ClearSessionCookie(c)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Logged out successfully"}))
}
