package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/identity-backend/internal/auth/provider"
	"github.com/yungbote/identity-backend/internal/auth/token"
	types "github.com/yungbote/identity-backend/internal/domain/identity"
	"github.com/yungbote/identity-backend/internal/http/middleware"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/platform/logger"
	"github.com/yungbote/identity-backend/internal/services"
)

const testFrontendURL = "https://app.example.com"

// fakeOAuth mirrors the service contract closely enough for handler
// tests: denial and bad state come back as invalid-argument errors, a
// good code yields a login result.
type fakeOAuth struct {
	result *services.LoginResult
}

func (f *fakeOAuth) Begin(ctx context.Context, providerName string) (string, error) {
	if providerName != "github" && providerName != "google" {
		return "", fmt.Errorf("%w: unsupported provider %q", apperr.ErrInvalidArgument, providerName)
	}
	return "https://provider.example.com/authorize?state=nonce", nil
}

func (f *fakeOAuth) Callback(ctx context.Context, providerName, code, stateNonce, errParam string) (*services.LoginResult, error) {
	if errParam != "" {
		return nil, fmt.Errorf("%w: provider returned error: %s", apperr.ErrInvalidArgument, errParam)
	}
	if stateNonce != "good-nonce" {
		return nil, fmt.Errorf("%w: invalid state parameter", apperr.ErrInvalidArgument)
	}
	if code != "good-code" {
		return nil, &provider.Error{Provider: providerName, Err: fmt.Errorf("code exchange failed")}
	}
	return f.result, nil
}

type fakeAuth struct{}

func (f *fakeAuth) Register(ctx context.Context, email, username, password, fullName string) (*types.User, error) {
	if email == "taken@example.com" {
		return nil, fmt.Errorf("create user: %w", apperr.ErrConflict)
	}
	return &types.User{ID: uuid.New(), Username: username, Email: email}, nil
}

func (f *fakeAuth) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	if password != "correct-horse" {
		return nil, fmt.Errorf("%w: invalid password", apperr.ErrUnauthenticated)
	}
	user := &types.User{ID: uuid.New(), Username: "alice", Email: email}
	return &services.LoginResult{User: user, Token: "signed", SessionID: uuid.New(), ExpiresIn: 1800}, nil
}

func (f *fakeAuth) CompleteLogin(ctx context.Context, user *types.User) (*services.LoginResult, error) {
	return &services.LoginResult{User: user, Token: "signed", SessionID: uuid.New(), ExpiresIn: 1800}, nil
}

type fakeSessions struct {
	snapshots map[uuid.UUID]*types.SessionSnapshot
	deleted   []uuid.UUID
}

func (f *fakeSessions) Create(ctx context.Context, user *types.User, ttl time.Duration) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (f *fakeSessions) Get(ctx context.Context, sessionID uuid.UUID) (*types.SessionSnapshot, services.Source, error) {
	snap, ok := f.snapshots[sessionID]
	if !ok {
		return nil, services.SourceDurable, apperr.ErrNotFound
	}
	return snap, services.SourceDurable, nil
}

func (f *fakeSessions) Delete(ctx context.Context, sessionID uuid.UUID) error {
	f.deleted = append(f.deleted, sessionID)
	delete(f.snapshots, sessionID)
	return nil
}

func (f *fakeSessions) SweepExpired(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeSessions) StartSweeper(ctx context.Context, interval time.Duration) {}

type fakeIdentities struct{}

func (f *fakeIdentities) Resolve(ctx context.Context, ident *provider.Identity) (*types.User, error) {
	return nil, nil
}

func (f *fakeIdentities) LinkIdentity(ctx context.Context, userID uuid.UUID, ident *provider.Identity) error {
	return nil
}

func (f *fakeIdentities) ListIdentities(ctx context.Context, userID uuid.UUID) ([]*types.ExternalIdentity, error) {
	return []*types.ExternalIdentity{{ID: uuid.New(), UserID: userID, Provider: "github", ProviderSub: "4242"}}, nil
}

type handlerFixture struct {
	engine   *gin.Engine
	codec    token.Codec
	sessions *fakeSessions
	result   *services.LoginResult
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	codec := token.NewCodec("test-secret")
	sessions := &fakeSessions{snapshots: map[uuid.UUID]*types.SessionSnapshot{}}

	user := &types.User{ID: uuid.New(), Username: "octocat", Email: "octocat@example.com", IsActive: true}
	result := &services.LoginResult{User: user, Token: "signed-token", SessionID: uuid.New(), ExpiresIn: 1800}

	handler := NewAuthHandler(&fakeOAuth{result: result}, &fakeAuth{}, sessions, &fakeIdentities{}, testFrontendURL, 1800)
	authMW := middleware.NewAuthMiddleware(log, services.NewAuthResolver(log, codec, sessions))

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	v1.POST("/register", handler.Register)
	v1.POST("/login", handler.Login)
	v1.GET("/auth/:provider/login", handler.OAuthLogin)
	v1.GET("/auth/:provider/callback", handler.OAuthCallback)
	v1.GET("/auth/session", handler.Session)
	protected := v1.Group("")
	protected.Use(authMW.RequireAuth())
	protected.POST("/auth/logout", handler.Logout)
	protected.GET("/auth/me", handler.Me)
	protected.GET("/me/identities", handler.MyIdentities)

	return &handlerFixture{engine: engine, codec: codec, sessions: sessions, result: result}
}

func (fx *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	fx.engine.ServeHTTP(rec, req)
	return rec
}

func TestOAuthLoginRedirects(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/github/login", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://provider.example.com/authorize?state=nonce", rec.Header().Get("Location"))
}

func TestOAuthLoginUnsupportedProvider(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/gitlab/login", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallbackSetsCookieAndRedirects(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/github/callback?code=good-code&state=good-nonce", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), testFrontendURL+"/auth/callback"))
	assert.Equal(t, "signed-token", loc.Query().Get("token"))

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "session_id" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, fx.result.SessionID.String(), cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestOAuthCallbackProviderDenial(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/github/callback?error=access_denied", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"]["message"], "access_denied")
}

func TestOAuthCallbackBadState(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/github/callback?code=good-code&state=forged", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallbackExchangeFailure(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/github/callback?code=bad-code&state=good-nonce", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "oauth_failed", body["error"]["code"])
}

func TestMeRequiresAuth(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestMeWithBearerToken(t *testing.T) {
	fx := newHandlerFixture(t)

	userID := uuid.New()
	bearer, err := fx.codec.Issue(userID, "alice", "alice@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, userID.String(), body["id"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "token", body["source"])
}

func TestMeWithSessionCookie(t *testing.T) {
	fx := newHandlerFixture(t)

	sessionID := uuid.New()
	fx.sessions.snapshots[sessionID] = &types.SessionSnapshot{
		UserID:    uuid.New(),
		Username:  "bob",
		Email:     "bob@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID.String()})
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bob", body["username"])
	assert.Equal(t, "session", body["source"])
}

func TestLogoutDeletesSessionAndClearsCookie(t *testing.T) {
	fx := newHandlerFixture(t)

	sessionID := uuid.New()
	fx.sessions.snapshots[sessionID] = &types.SessionSnapshot{
		UserID:    uuid.New(),
		Username:  "bob",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID.String()})
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, fx.sessions.deleted, 1)
	assert.Equal(t, sessionID, fx.sessions.deleted[0])

	var cleared *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "session_id" {
			cleared = ck
		}
	}
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.MaxAge < 0)
}

func TestSessionEndpoint(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	sessionID := uuid.New()
	fx.sessions.snapshots[sessionID] = &types.SessionSnapshot{
		UserID:    uuid.New(),
		Username:  "bob",
		Email:     "bob@example.com",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: sessionID.String()})
	rec = fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bob", body["username"])
	assert.Equal(t, "durable", body["source"])
}

func TestMyIdentities(t *testing.T) {
	fx := newHandlerFixture(t)

	bearer, err := fx.codec.Issue(uuid.New(), "alice", "alice@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/identities", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Identities []map[string]interface{} `json:"identities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Identities, 1)
	assert.Equal(t, "github", body.Identities[0]["provider"])
}

func TestRegisterAndLogin(t *testing.T) {
	fx := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/register",
		strings.NewReader(`{"email":"new@example.com","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := fx.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/register",
		strings.NewReader(`{"email":"taken@example.com","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = fx.do(req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/login",
		strings.NewReader(`{"email":"new@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = fx.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/login",
		strings.NewReader(`{"email":"new@example.com","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = fx.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "session_id" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
}
