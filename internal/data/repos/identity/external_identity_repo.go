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

type ExternalIdentityRepo interface {
	Create(dbc dbctx.Context, idents []*types.ExternalIdentity) ([]*types.ExternalIdentity, error)
	GetByProviderSub(dbc dbctx.Context, provider, sub string) (*types.ExternalIdentity, error)
	GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.ExternalIdentity, error)
	UpdateTokens(dbc dbctx.Context, provider, sub, accessToken, refreshToken string, expiresAt *time.Time) error
}

type externalIdentityRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExternalIdentityRepo(db *gorm.DB, baseLog *logger.Logger) ExternalIdentityRepo {
	return &externalIdentityRepo{db: db, log: baseLog.With("repo", "ExternalIdentityRepo")}
}

func (r *externalIdentityRepo) Create(dbc dbctx.Context, idents []*types.ExternalIdentity) ([]*types.ExternalIdentity, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if len(idents) == 0 {
		return []*types.ExternalIdentity{}, nil
	}
	if err := txx.WithContext(dbc.Ctx).Create(&idents).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create external identity: %w", apperr.ErrConflict)
		}
		return nil, err
	}
	return idents, nil
}

func (r *externalIdentityRepo) GetByProviderSub(dbc dbctx.Context, provider, sub string) (*types.ExternalIdentity, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out types.ExternalIdentity
	err := txx.WithContext(dbc.Ctx).
		Where("provider = ? AND provider_sub = ?", provider, sub).
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *externalIdentityRepo) GetByUserIDs(dbc dbctx.Context, userIDs []uuid.UUID) ([]*types.ExternalIdentity, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*types.ExternalIdentity
	if len(userIDs) == 0 {
		return out, nil
	}
	if err := txx.WithContext(dbc.Ctx).Where("user_id IN ?", userIDs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *externalIdentityRepo) UpdateTokens(dbc dbctx.Context, provider, sub, accessToken, refreshToken string, expiresAt *time.Time) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	updates := map[string]interface{}{}
	if accessToken != "" {
		updates["access_token"] = accessToken
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	if expiresAt != nil {
		updates["token_expires_at"] = expiresAt
	}
	if len(updates) == 0 {
		return nil
	}
	return txx.WithContext(dbc.Ctx).
		Model(&types.ExternalIdentity{}).
		Where("provider = ? AND provider_sub = ?", provider, sub).
		Updates(updates).Error
}
