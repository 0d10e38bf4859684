package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	githuboauth "golang.org/x/oauth2/github"

	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

const (
	githubName           = "github"
	defaultGithubAPIBase = "https://api.github.com"
)

type GithubConfig struct {
	ClientID     string
	ClientSecret string
	// AuthURL/TokenURL/APIBaseURL default to github.com; tests point
	// them at a local server.
	AuthURL     string
	TokenURL    string
	APIBaseURL  string
	HTTPTimeout time.Duration
}

type githubClient struct {
	log  *logger.Logger
	cfg  GithubConfig
	http *http.Client
}

// NewGithub builds the static-endpoint variant.
func NewGithub(log *logger.Logger, cfg GithubConfig) (Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("github: %w", apperr.ErrProviderNotConfigured)
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = githuboauth.Endpoint.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = githuboauth.Endpoint.TokenURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultGithubAPIBase
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &githubClient{
		log:  log.With("provider", githubName),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

func (g *githubClient) Name() string { return githubName }

func (g *githubClient) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"user:email"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  g.cfg.AuthURL,
			TokenURL: g.cfg.TokenURL,
		},
	}
}

func (g *githubClient) AuthorizationURL(_ context.Context, redirectURI, state string) (string, error) {
	return g.oauthConfig(redirectURI).AuthCodeURL(state), nil
}

func (g *githubClient) getJSON(ctx context.Context, url, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *githubClient) Exchange(ctx context.Context, code, redirectURI string) (*Identity, error) {
	cfg := g.oauthConfig(redirectURI)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, newError(githubName, "code exchange: %v", err)
	}

	var user struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.getJSON(ctx, g.cfg.APIBaseURL+"/user", tok.AccessToken, &user); err != nil {
		return nil, newError(githubName, "userinfo fetch: %v", err)
	}

	var emails []struct {
		Email   string `json:"email"`
		Primary bool   `json:"primary"`
	}
	if err := g.getJSON(ctx, g.cfg.APIBaseURL+"/user/emails", tok.AccessToken, &emails); err != nil {
		return nil, newError(githubName, "emails fetch: %v", err)
	}

	// Pick the address flagged primary, falling back to the profile
	// email when none is.
	email := user.Email
	for _, e := range emails {
		if e.Primary {
			email = e.Email
			break
		}
	}

	if user.ID == 0 || email == "" {
		return nil, newError(githubName, "userinfo missing id or email")
	}

	ident := &Identity{
		Provider:     githubName,
		Sub:          strconv.FormatInt(user.ID, 10),
		Email:        email,
		FullName:     user.Name,
		AvatarURL:    user.AvatarURL,
		Username:     user.Login,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		ident.TokenExpiresAt = &expiry
	}
	return ident, nil
}
