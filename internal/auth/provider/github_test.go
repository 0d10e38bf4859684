package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

func newGithubTestServer(t *testing.T, userEmail string, emails []map[string]interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "gh-access",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gh-access", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         int64(4242),
			"login":      "octocat",
			"name":       "Octo Cat",
			"email":      userEmail,
			"avatar_url": "https://example.com/a.png",
		})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(emails)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newGithubTestClient(t *testing.T, srv *httptest.Server) Client {
	t.Helper()
	client, err := NewGithub(logger.NewNop(), GithubConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		AuthURL:      srv.URL + "/login/oauth/authorize",
		TokenURL:     srv.URL + "/login/oauth/access_token",
		APIBaseURL:   srv.URL,
	})
	require.NoError(t, err)
	return client
}

func TestGithubRequiresCredentials(t *testing.T) {
	_, err := NewGithub(logger.NewNop(), GithubConfig{})
	assert.True(t, errors.Is(err, apperr.ErrProviderNotConfigured))
}

func TestGithubAuthorizationURL(t *testing.T) {
	srv := newGithubTestServer(t, "", nil)
	client := newGithubTestClient(t, srv)

	raw, err := client.AuthorizationURL(context.Background(), "https://app.example.com/cb", "nonce123")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "id", q.Get("client_id"))
	assert.Equal(t, "nonce123", q.Get("state"))
	assert.Equal(t, "https://app.example.com/cb", q.Get("redirect_uri"))
	assert.Equal(t, "user:email", q.Get("scope"))
}

func TestGithubExchangePrefersPrimaryEmail(t *testing.T) {
	srv := newGithubTestServer(t, "profile@example.com", []map[string]interface{}{
		{"email": "secondary@example.com", "primary": false},
		{"email": "primary@example.com", "primary": true},
	})
	client := newGithubTestClient(t, srv)

	ident, err := client.Exchange(context.Background(), "good-code", "https://app.example.com/cb")
	require.NoError(t, err)
	assert.Equal(t, "github", ident.Provider)
	assert.Equal(t, "4242", ident.Sub)
	assert.Equal(t, "primary@example.com", ident.Email)
	assert.Equal(t, "octocat", ident.Username)
	assert.Equal(t, "gh-access", ident.AccessToken)
}

func TestGithubExchangeFallsBackToProfileEmail(t *testing.T) {
	srv := newGithubTestServer(t, "profile@example.com", []map[string]interface{}{
		{"email": "secondary@example.com", "primary": false},
	})
	client := newGithubTestClient(t, srv)

	ident, err := client.Exchange(context.Background(), "good-code", "https://app.example.com/cb")
	require.NoError(t, err)
	assert.Equal(t, "profile@example.com", ident.Email)
}

func TestGithubExchangeNoEmailFails(t *testing.T) {
	srv := newGithubTestServer(t, "", nil)
	client := newGithubTestClient(t, srv)

	_, err := client.Exchange(context.Background(), "good-code", "https://app.example.com/cb")
	var pErr *Error
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "github", pErr.Provider)
}

func TestGithubExchangeBadCode(t *testing.T) {
	srv := newGithubTestServer(t, "x@example.com", nil)
	client := newGithubTestClient(t, srv)

	_, err := client.Exchange(context.Background(), "bad-code", "https://app.example.com/cb")
	var pErr *Error
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "github", pErr.Provider)
}
