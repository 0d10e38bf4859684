package services

import (
	"context"
	"fmt"

	"github.com/yungbote/identity-backend/internal/auth/provider"
	"github.com/yungbote/identity-backend/internal/auth/state"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

// OAuthService drives the login flow end to end: state issue and
// redirect on the way out, state consume, code exchange, identity
// resolution, and credential minting on the way back.
type OAuthService interface {
	Begin(ctx context.Context, providerName string) (string, error)
	Callback(ctx context.Context, providerName, code, stateNonce, errParam string) (*LoginResult, error)
}

type oauthService struct {
	log        *logger.Logger
	registry   *provider.Registry
	states     state.Store
	resolver   IdentityResolver
	auth       AuthService
	backendURL string
}

func NewOAuthService(
	log *logger.Logger,
	registry *provider.Registry,
	states state.Store,
	resolver IdentityResolver,
	auth AuthService,
	backendURL string,
) OAuthService {
	return &oauthService{
		log:        log.With("service", "OAuthService"),
		registry:   registry,
		states:     states,
		resolver:   resolver,
		auth:       auth,
		backendURL: backendURL,
	}
}

func (s *oauthService) redirectURI(providerName string) string {
	return fmt.Sprintf("%s/api/v1/auth/%s/callback", s.backendURL, providerName)
}

func (s *oauthService) Begin(ctx context.Context, providerName string) (string, error) {
	if !provider.Supported(providerName) {
		return "", fmt.Errorf("%w: unsupported provider %q", apperr.ErrInvalidArgument, providerName)
	}
	client, ok := s.registry.Get(providerName)
	if !ok {
		return "", fmt.Errorf("provider %s: %w", providerName, apperr.ErrProviderNotConfigured)
	}

	nonce, err := s.states.Issue(ctx, providerName)
	if err != nil {
		return "", fmt.Errorf("issue state: %w", err)
	}

	authURL, err := client.AuthorizationURL(ctx, s.redirectURI(providerName), nonce)
	if err != nil {
		return "", err
	}
	s.log.Debug("login flow started", "provider", providerName)
	return authURL, nil
}

func (s *oauthService) Callback(ctx context.Context, providerName, code, stateNonce, errParam string) (*LoginResult, error) {
	// Provider-reported denial short-circuits before any state or
	// network work; the token endpoint is never contacted.
	if errParam != "" {
		return nil, fmt.Errorf("%w: provider returned error: %s", apperr.ErrInvalidArgument, errParam)
	}

	if !provider.Supported(providerName) {
		return nil, fmt.Errorf("%w: unsupported provider %q", apperr.ErrInvalidArgument, providerName)
	}
	client, ok := s.registry.Get(providerName)
	if !ok {
		return nil, fmt.Errorf("provider %s: %w", providerName, apperr.ErrProviderNotConfigured)
	}

	consumed, err := s.states.Consume(ctx, stateNonce, providerName)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, fmt.Errorf("%w: invalid state parameter", apperr.ErrInvalidArgument)
	}

	ident, err := client.Exchange(ctx, code, s.redirectURI(providerName))
	if err != nil {
		return nil, err
	}

	user, err := s.resolver.Resolve(ctx, ident)
	if err != nil {
		return nil, err
	}

	result, err := s.auth.CompleteLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info("login flow complete", "provider", providerName, "user_id", user.ID)
	return result, nil
}
