package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/identity-backend/internal/domain/identity"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/pkg/dbctx"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, sessions []*types.Session) ([]*types.Session, error)
	// GetByID preloads the owning user. A missing row is
	// apperr.ErrNotFound; a store failure is apperr.ErrStoreUnavailable
	// so callers can tell a confirmed absence from an outage.
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	FullDeleteByID(dbc dbctx.Context, id uuid.UUID) error
	FullDeleteExpired(dbc dbctx.Context, before time.Time) (int64, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, sessions []*types.Session) ([]*types.Session, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if len(sessions) == 0 {
		return []*types.Session{}, nil
	}
	if err := txx.WithContext(dbc.Ctx).Create(&sessions).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sessions, nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.Session
	err := txx.WithContext(dbc.Ctx).
		Preload("User").
		Where("id = ?", id).
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return &out, nil
}

func (r *sessionRepo) FullDeleteByID(dbc dbctx.Context, id uuid.UUID) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	// Missing row is not an error; delete is idempotent.
	return txx.WithContext(dbc.Ctx).
		Unscoped().
		Where("id = ?", id).
		Delete(&types.Session{}).Error
}

func (r *sessionRepo) FullDeleteExpired(dbc dbctx.Context, before time.Time) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Unscoped().
		Where("expires_at < ?", before).
		Delete(&types.Session{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
