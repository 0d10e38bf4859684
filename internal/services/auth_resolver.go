package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/identity-backend/internal/auth/token"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

// PrincipalSource names which credential produced the principal, so
// precedence stays an observable contract instead of incidental
// control flow.
type PrincipalSource string

const (
	SourceToken   PrincipalSource = "token"
	SourceSession PrincipalSource = "session"
)

type AuthPrincipal struct {
	UserID   uuid.UUID       `json:"user_id"`
	Username string          `json:"username"`
	Email    string          `json:"email,omitempty"`
	Source   PrincipalSource `json:"source"`
}

// AuthResolver combines the stateless credential and the session
// cookie into one authenticated principal. A present bearer token wins
// outright: a valid session for a different identity never overrides
// it, and a present-but-invalid token fails resolution without a
// session fallback.
type AuthResolver interface {
	Resolve(ctx context.Context, bearer string, sessionID string) (*AuthPrincipal, error)
	// ResolveOptional returns (nil, nil) instead of an error when no
	// credential resolves, for endpoints tolerating anonymous access.
	ResolveOptional(ctx context.Context, bearer string, sessionID string) (*AuthPrincipal, error)
}

type authResolver struct {
	log      *logger.Logger
	codec    token.Codec
	sessions SessionManager
}

func NewAuthResolver(log *logger.Logger, codec token.Codec, sessions SessionManager) AuthResolver {
	return &authResolver{
		log:      log.With("service", "AuthResolver"),
		codec:    codec,
		sessions: sessions,
	}
}

func (r *authResolver) Resolve(ctx context.Context, bearer string, sessionID string) (*AuthPrincipal, error) {
	if bearer != "" {
		claims, err := r.codec.Verify(bearer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
		}
		userID, err := claims.UserID()
		if err != nil {
			return nil, fmt.Errorf("%w: bad subject: %v", apperr.ErrUnauthenticated, err)
		}
		return &AuthPrincipal{
			UserID:   userID,
			Username: claims.Username,
			Email:    claims.Email,
			Source:   SourceToken,
		}, nil
	}

	if sessionID != "" {
		id, err := uuid.Parse(sessionID)
		if err != nil {
			return nil, fmt.Errorf("%w: bad session id", apperr.ErrUnauthenticated)
		}
		snap, source, err := r.sessions.Get(ctx, id)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, fmt.Errorf("%w: no active session", apperr.ErrUnauthenticated)
			}
			return nil, err
		}
		if source == SourceCache {
			r.log.Debug("session resolved from cache shadow", "session_id", sessionID)
		}
		return &AuthPrincipal{
			UserID:   snap.UserID,
			Username: snap.Username,
			Email:    snap.Email,
			Source:   SourceSession,
		}, nil
	}

	return nil, fmt.Errorf("%w: no credentials presented", apperr.ErrUnauthenticated)
}

func (r *authResolver) ResolveOptional(ctx context.Context, bearer string, sessionID string) (*AuthPrincipal, error) {
	principal, err := r.Resolve(ctx, bearer, sessionID)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthenticated) {
			return nil, nil
		}
		return nil, err
	}
	return principal, nil
}
