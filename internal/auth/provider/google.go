package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

const (
	googleName             = "google"
	defaultDiscoveryURL    = "https://accounts.google.com/.well-known/openid-configuration"
	discoveryCacheDuration = time.Hour
)

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	DiscoveryURL string
	HTTPTimeout  time.Duration
}

type discoveryDoc struct {
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
}

type googleClient struct {
	log  *logger.Logger
	cfg  GoogleConfig
	http *http.Client

	group   singleflight.Group
	mu      sync.Mutex
	doc     *discoveryDoc
	fetched time.Time
}

// NewGoogle builds the OIDC-discovery-based variant. Missing client
// credentials fail here, at wiring time, not on first login.
func NewGoogle(log *logger.Logger, cfg GoogleConfig) (Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("google: %w", apperr.ErrProviderNotConfigured)
	}
	if cfg.DiscoveryURL == "" {
		cfg.DiscoveryURL = defaultDiscoveryURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &googleClient{
		log:  log.With("provider", googleName),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

func (g *googleClient) Name() string { return googleName }

func (g *googleClient) discover(ctx context.Context) (*discoveryDoc, error) {
	g.mu.Lock()
	if g.doc != nil && time.Since(g.fetched) < discoveryCacheDuration {
		doc := g.doc
		g.mu.Unlock()
		return doc, nil
	}
	g.mu.Unlock()

	v, err, _ := g.group.Do("discovery", func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.DiscoveryURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := g.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("discovery returned %d", resp.StatusCode)
		}
		var doc discoveryDoc
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, err
		}
		if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" || doc.UserinfoEndpoint == "" {
			return nil, fmt.Errorf("discovery document missing endpoints")
		}
		g.mu.Lock()
		g.doc = &doc
		g.fetched = time.Now()
		g.mu.Unlock()
		return &doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*discoveryDoc), nil
}

func (g *googleClient) oauthConfig(doc *discoveryDoc, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     g.cfg.ClientID,
		ClientSecret: g.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  doc.AuthorizationEndpoint,
			TokenURL: doc.TokenEndpoint,
		},
	}
}

func (g *googleClient) AuthorizationURL(ctx context.Context, redirectURI, state string) (string, error) {
	doc, err := g.discover(ctx)
	if err != nil {
		return "", newError(googleName, "discovery: %v", err)
	}
	cfg := g.oauthConfig(doc, redirectURI)
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

func (g *googleClient) Exchange(ctx context.Context, code, redirectURI string) (*Identity, error) {
	doc, err := g.discover(ctx)
	if err != nil {
		return nil, newError(googleName, "discovery: %v", err)
	}
	cfg := g.oauthConfig(doc, redirectURI)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.http)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, newError(googleName, "code exchange: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doc.UserinfoEndpoint, nil)
	if err != nil {
		return nil, newError(googleName, "userinfo request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, newError(googleName, "userinfo fetch: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newError(googleName, "userinfo returned %d", resp.StatusCode)
	}

	var info struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, newError(googleName, "userinfo decode: %v", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, newError(googleName, "userinfo missing id or email")
	}

	ident := &Identity{
		Provider:     googleName,
		Sub:          info.Sub,
		Email:        info.Email,
		FullName:     info.Name,
		AvatarURL:    info.Picture,
		Username:     strings.SplitN(info.Email, "@", 2)[0],
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		ident.TokenExpiresAt = &expiry
	}
	return ident, nil
}
