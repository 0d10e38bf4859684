package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/identity-backend/internal/platform/logger"
	"github.com/yungbote/identity-backend/internal/requestdata"
	"github.com/yungbote/identity-backend/internal/services"
)

const sessionCookieName = "session_id"

type AuthMiddleware struct {
	log      *logger.Logger
	resolver services.AuthResolver
}

func NewAuthMiddleware(log *logger.Logger, resolver services.AuthResolver) *AuthMiddleware {
	return &AuthMiddleware{
		log:      log.With("middleware", "AuthMiddleware"),
		resolver: resolver,
	}
}

// RequireAuth resolves a bearer token or session cookie into request
// data; without either the request is rejected with a bearer hint.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := extractBearer(c)
		sessionID := extractSessionID(c)

		principal, err := am.resolver.Resolve(c.Request.Context(), bearer, sessionID)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "not authenticated", "code": "unauthorized"},
			})
			return
		}
		attach(c, principal, sessionID)
		c.Next()
	}
}

// OptionalAuth attaches request data when credentials resolve and lets
// anonymous requests through.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := extractBearer(c)
		sessionID := extractSessionID(c)

		principal, err := am.resolver.ResolveOptional(c.Request.Context(), bearer, sessionID)
		if err != nil {
			am.log.Warn("optional auth resolution failed", "error", err)
		}
		if principal != nil {
			attach(c, principal, sessionID)
		}
		c.Next()
	}
}

func attach(c *gin.Context, principal *services.AuthPrincipal, sessionID string) {
	rd := &requestdata.RequestData{
		UserID:   principal.UserID,
		Username: principal.Username,
		Email:    principal.Email,
		Source:   string(principal.Source),
	}
	if sessionID != "" {
		if id, err := uuid.Parse(sessionID); err == nil {
			rd.SessionID = id
		}
	}
	c.Request = c.Request.WithContext(requestdata.WithRequestData(c.Request.Context(), rd))
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

func extractSessionID(c *gin.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie
}
