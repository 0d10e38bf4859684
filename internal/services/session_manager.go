package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repos "github.com/yungbote/identity-backend/internal/data/repos/identity"
	types "github.com/yungbote/identity-backend/internal/domain/identity"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/pkg/dbctx"
	"github.com/yungbote/identity-backend/internal/platform/cache"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

const sessionKeyPrefix = "session:"

// Source reports which backend answered a session read. The durable
// store is authoritative; the cache is advisory and only consulted
// when the durable store cannot answer.
type Source string

const (
	SourceDurable Source = "durable"
	SourceCache   Source = "cache"
)

type SessionManager interface {
	// Create writes the durable record first; a cache mirror failure is
	// logged and swallowed, never surfaced to the caller.
	Create(ctx context.Context, user *types.User, ttl time.Duration) (uuid.UUID, error)
	// Get returns apperr.ErrNotFound for a missing or expired session.
	// The cache shadow is consulted only when the durable store is
	// unavailable, never to resurrect a confirmed durable miss.
	Get(ctx context.Context, sessionID uuid.UUID) (*types.SessionSnapshot, Source, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
	SweepExpired(ctx context.Context) (int64, error)
	// StartSweeper runs SweepExpired on a ticker until ctx ends. It
	// never blocks request handling.
	StartSweeper(ctx context.Context, interval time.Duration)
}

type sessionManager struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.SessionRepo
	cache       cache.Store
}

func NewSessionManager(
	db *gorm.DB,
	log *logger.Logger,
	sessionRepo repos.SessionRepo,
	cacheStore cache.Store,
) SessionManager {
	return &sessionManager{
		db:          db,
		log:         log.With("service", "SessionManager"),
		sessionRepo: sessionRepo,
		cache:       cacheStore,
	}
}

func (m *sessionManager) Create(ctx context.Context, user *types.User, ttl time.Duration) (uuid.UUID, error) {
	if user == nil {
		return uuid.Nil, fmt.Errorf("create session: %w", apperr.ErrInvalidArgument)
	}
	session := &types.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if _, err := m.sessionRepo.Create(dbctx.New(ctx), []*types.Session{session}); err != nil {
		return uuid.Nil, err
	}

	snapshot := types.SessionSnapshot{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		ExpiresAt: session.ExpiresAt,
	}
	if err := m.mirror(ctx, session.ID, snapshot, ttl); err != nil {
		m.log.Warn("session cache mirror failed", "session_id", session.ID, "error", err)
	}
	return session.ID, nil
}

func (m *sessionManager) mirror(ctx context.Context, sessionID uuid.UUID, snapshot types.SessionSnapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return m.cache.Set(ctx, sessionKeyPrefix+sessionID.String(), string(raw), ttl)
}

func (m *sessionManager) Get(ctx context.Context, sessionID uuid.UUID) (*types.SessionSnapshot, Source, error) {
	session, err := m.sessionRepo.GetByID(dbctx.New(ctx), sessionID)
	if err == nil {
		if time.Now().After(session.ExpiresAt) {
			// Confirmed expiry; the shadow must not override it.
			return nil, SourceDurable, apperr.ErrNotFound
		}
		snap := &types.SessionSnapshot{
			UserID:    session.UserID,
			ExpiresAt: session.ExpiresAt,
		}
		if session.User != nil {
			snap.Username = session.User.Username
			snap.Email = session.User.Email
		}
		return snap, SourceDurable, nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, SourceDurable, apperr.ErrNotFound
	}
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		return nil, SourceDurable, err
	}

	m.log.Warn("durable session read failed, consulting cache shadow", "session_id", sessionID, "error", err)
	raw, cErr := m.cache.Get(ctx, sessionKeyPrefix+sessionID.String())
	if cErr != nil {
		if errors.Is(cErr, apperr.ErrNotFound) {
			return nil, SourceCache, apperr.ErrNotFound
		}
		return nil, SourceCache, cErr
	}
	var snap types.SessionSnapshot
	if uErr := json.Unmarshal([]byte(raw), &snap); uErr != nil {
		m.log.Warn("bad session shadow payload", "session_id", sessionID, "error", uErr)
		return nil, SourceCache, apperr.ErrNotFound
	}
	if time.Now().After(snap.ExpiresAt) {
		return nil, SourceCache, apperr.ErrNotFound
	}
	return &snap, SourceCache, nil
}

func (m *sessionManager) Delete(ctx context.Context, sessionID uuid.UUID) error {
	// Both backends; neither missing the record is an error.
	if err := m.sessionRepo.FullDeleteByID(dbctx.New(ctx), sessionID); err != nil {
		return err
	}
	if err := m.cache.Delete(ctx, sessionKeyPrefix+sessionID.String()); err != nil {
		m.log.Warn("session shadow delete failed", "session_id", sessionID, "error", err)
	}
	return nil
}

func (m *sessionManager) SweepExpired(ctx context.Context) (int64, error) {
	// Durable only; cache entries expire on their own TTL.
	count, err := m.sessionRepo.FullDeleteExpired(dbctx.New(ctx), time.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		m.log.Info("swept expired sessions", "count", count)
	}
	return count, nil
}

func (m *sessionManager) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.SweepExpired(ctx); err != nil {
					m.log.Warn("session sweep failed", "error", err)
				}
			}
		}
	}()
}
