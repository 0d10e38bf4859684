package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/identity-backend/internal/auth/provider"
	"github.com/yungbote/identity-backend/internal/http/response"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/requestdata"
	"github.com/yungbote/identity-backend/internal/services"
)

const sessionCookieName = "session_id"

type AuthHandler struct {
	oauth       services.OAuthService
	auth        services.AuthService
	sessions    services.SessionManager
	resolver    services.IdentityResolver
	frontendURL string
	cookieTTL   int
}

func NewAuthHandler(
	oauth services.OAuthService,
	auth services.AuthService,
	sessions services.SessionManager,
	resolver services.IdentityResolver,
	frontendURL string,
	cookieTTLSeconds int,
) *AuthHandler {
	return &AuthHandler{
		oauth:       oauth,
		auth:        auth,
		sessions:    sessions,
		resolver:    resolver,
		frontendURL: frontendURL,
		cookieTTL:   cookieTTLSeconds,
	}
}

// GET /auth/:provider/login
func (ah *AuthHandler) OAuthLogin(c *gin.Context) {
	providerName := c.Param("provider")
	authURL, err := ah.oauth.Begin(c.Request.Context(), providerName)
	if err != nil {
		status, code := classify(err)
		response.RespondError(c, status, code, err)
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// GET /auth/:provider/callback
func (ah *AuthHandler) OAuthCallback(c *gin.Context) {
	providerName := c.Param("provider")
	result, err := ah.oauth.Callback(
		c.Request.Context(),
		providerName,
		c.Query("code"),
		c.Query("state"),
		c.Query("error"),
	)
	if err != nil {
		status, code := classify(err)
		response.RespondError(c, status, code, err)
		return
	}

	ah.setSessionCookie(c, result.SessionID.String(), ah.cookieTTL)
	target := fmt.Sprintf("%s/auth/callback?token=%s", ah.frontendURL, url.QueryEscape(result.Token))
	c.Redirect(http.StatusTemporaryRedirect, target)
}

// POST /register
func (ah *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	user, err := ah.auth.Register(c.Request.Context(), req.Email, req.Username, req.Password, req.FullName)
	if err != nil {
		status, code := classify(err)
		response.RespondError(c, status, code, err)
		return
	}
	response.RespondOK(c, user)
}

// POST /login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := ah.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status, code := classify(err)
		response.RespondError(c, status, code, err)
		return
	}
	ah.setSessionCookie(c, result.SessionID.String(), ah.cookieTTL)
	response.RespondOK(c, gin.H{
		"access_token": result.Token,
		"expires_in":   result.ExpiresIn,
		"user":         result.User,
	})
}

// POST /auth/logout
func (ah *AuthHandler) Logout(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd != nil && rd.SessionID != uuid.Nil {
		if err := ah.sessions.Delete(c.Request.Context(), rd.SessionID); err != nil {
			response.RespondError(c, http.StatusInternalServerError, "logout_failed", err)
			return
		}
	}
	ah.setSessionCookie(c, "", -1)
	response.RespondOK(c, gin.H{"message": "Logged out successfully"})
}

// GET /auth/me
func (ah *AuthHandler) Me(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.Header("WWW-Authenticate", "Bearer")
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperr.ErrUnauthenticated)
		return
	}
	response.RespondOK(c, gin.H{
		"id":       rd.UserID,
		"username": rd.Username,
		"email":    rd.Email,
		"source":   rd.Source,
	})
}

// GET /me/identities
func (ah *AuthHandler) MyIdentities(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.Header("WWW-Authenticate", "Bearer")
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", apperr.ErrUnauthenticated)
		return
	}
	idents, err := ah.resolver.ListIdentities(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_identities_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"identities": idents})
}

// GET /auth/session
func (ah *AuthHandler) Session(c *gin.Context) {
	raw, err := c.Cookie(sessionCookieName)
	if err != nil || raw == "" {
		response.RespondError(c, http.StatusUnauthorized, "no_session", errors.New("no active session"))
		return
	}
	sessionID, err := uuid.Parse(raw)
	if err != nil {
		response.RespondError(c, http.StatusUnauthorized, "no_session", errors.New("invalid session id"))
		return
	}
	snap, source, err := ah.sessions.Get(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			response.RespondError(c, http.StatusUnauthorized, "session_expired", errors.New("session expired or invalid"))
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "session_lookup_failed", err)
		return
	}
	response.RespondOK(c, gin.H{
		"user_id":    snap.UserID,
		"username":   snap.Username,
		"email":      snap.Email,
		"expires_at": snap.ExpiresAt,
		"source":     source,
	})
}

func (ah *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, value, maxAge, "/", "", true, true)
}

// classify maps the service error taxonomy onto HTTP statuses.
func classify(err error) (int, string) {
	var provErr *provider.Error
	switch {
	case errors.Is(err, apperr.ErrProviderNotConfigured):
		return http.StatusInternalServerError, "provider_not_configured"
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &provErr):
		return http.StatusBadRequest, "oauth_failed"
	case errors.Is(err, apperr.ErrUnauthenticated),
		errors.Is(err, apperr.ErrTokenExpired),
		errors.Is(err, apperr.ErrTokenMalformed):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
