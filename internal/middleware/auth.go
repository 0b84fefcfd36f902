package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"fundingportal/internal/service"
	"fundingportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie is the HttpOnly cookie carrying the session token.
const SessionCookie = "session_token"

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
	ctxToken    = "sessionToken"
)

// SessionValidator confirms a token with the session authority.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*service.SessionInfo, error)
}

// Authenticator guards routes with server-validated sessions.
type Authenticator struct {
	sessions SessionValidator
	secure   bool
}

// NewAuthenticator returns an Authenticator. secure switches cookies to
// SameSite=None + Secure for cross-origin production deployments.
func NewAuthenticator(sessions SessionValidator, secure bool) *Authenticator {
	return &Authenticator{sessions: sessions, secure: secure}
}

func (a *Authenticator) cookieMode() (http.SameSite, bool) {
	if a.secure {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// SetSessionCookie stores token as an HttpOnly cookie that expires with the session.
func (a *Authenticator) SetSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	sameSite, secure := a.cookieMode()
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	c.SetSameSite(sameSite)
	c.SetCookie(SessionCookie, token, maxAge, "/", "", secure, true)
}

// ClearSessionCookie removes the session cookie.
func (a *Authenticator) ClearSessionCookie(c *gin.Context) {
	sameSite, secure := a.cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie(SessionCookie, "", -1, "/", "", secure, true)
}

// TokenFromRequest reads the session token from the cookie, falling back to a Bearer header.
func TokenFromRequest(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// RequireSession validates the caller's token against the session table on every request.
func (a *Authenticator) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		info, err := a.sessions.ValidateSession(c.Request.Context(), token)
		if err != nil || !info.IsValid {
			a.ClearSessionCookie(c)
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, service.ErrSessionInvalid.Error()))
			return
		}

		c.Set(ctxUserID, info.UserID)
		c.Set(ctxUserRole, info.Role)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// RequireRole must run after RequireSession. It rejects callers whose role is not listed.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, allowed := range allowedRoles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// UserID returns the authenticated user's id set by RequireSession.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Role returns the authenticated user's role, or "".
func Role(c *gin.Context) string {
	return c.GetString(ctxUserRole)
}
