package cache

import (
	"context"
	"time"

	"github.com/yungbote/identity-backend/internal/pkg/apperr"
)

// Store is the string cache the service leans on for CSRF state and
// session shadows. Both backends return apperr.ErrNotFound for a
// missing key; the redis backend wraps transport failures as
// apperr.ErrStoreUnavailable.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// GetDelete reads and removes the key in one atomic step, so two
	// callers racing on the same key cannot both observe the value.
	GetDelete(ctx context.Context, key string) (string, error)
	Close() error
}

// ErrNotFound re-exported for call sites that only import cache.
var ErrNotFound = apperr.ErrNotFound
