package state

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/platform/cache"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

const keyPrefix = "oauth_state:"

// Store issues single-use CSRF state nonces bound to a provider tag.
type Store interface {
	Issue(ctx context.Context, provider string) (string, error)
	// Consume atomically removes the nonce and reports whether it was
	// present, unexpired, and bound to the given provider. A false
	// result is a CSRF validation failure, not an infrastructure error.
	Consume(ctx context.Context, nonce, provider string) (bool, error)
}

type store struct {
	log   *logger.Logger
	cache cache.Store
	ttl   time.Duration
}

func New(log *logger.Logger, c cache.Store, ttl time.Duration) Store {
	return &store{
		log:   log.With("service", "StateStore"),
		cache: c,
		ttl:   ttl,
	}
}

func (s *store) Issue(ctx context.Context, provider string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(buf)
	if err := s.cache.Set(ctx, keyPrefix+nonce, provider, s.ttl); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}
	return nonce, nil
}

func (s *store) Consume(ctx context.Context, nonce, provider string) (bool, error) {
	if nonce == "" {
		return false, nil
	}
	stored, err := s.cache.GetDelete(ctx, keyPrefix+nonce)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("consume state: %w", err)
	}
	if stored != provider {
		// The nonce is gone either way; a mismatched provider must not
		// leave it reusable.
		s.log.Warn("state provider mismatch", "expected", provider, "stored", stored)
		return false, nil
	}
	return true, nil
}
