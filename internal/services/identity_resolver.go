package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/identity-backend/internal/auth/provider"
	repos "github.com/yungbote/identity-backend/internal/data/repos/identity"
	types "github.com/yungbote/identity-backend/internal/domain/identity"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/pkg/dbctx"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

// IdentityResolver maps a normalized external identity onto a local
// user: by (provider, provider_sub) first, by email second (linking a
// new provider to the existing account), creating user and identity
// together otherwise.
type IdentityResolver interface {
	Resolve(ctx context.Context, ident *provider.Identity) (*types.User, error)
	// LinkIdentity attaches a provider account to an existing user. A
	// (provider, provider_sub) already owned elsewhere fails with
	// apperr.ErrConflict rather than silently reassigning ownership.
	LinkIdentity(ctx context.Context, userID uuid.UUID, ident *provider.Identity) error
	ListIdentities(ctx context.Context, userID uuid.UUID) ([]*types.ExternalIdentity, error)
}

type identityResolver struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	identityRepo repos.ExternalIdentityRepo
}

func NewIdentityResolver(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	identityRepo repos.ExternalIdentityRepo,
) IdentityResolver {
	return &identityResolver{
		db:           db,
		log:          log.With("service", "IdentityResolver"),
		userRepo:     userRepo,
		identityRepo: identityRepo,
	}
}

func (r *identityResolver) Resolve(ctx context.Context, ident *provider.Identity) (*types.User, error) {
	if ident == nil || ident.Provider == "" || ident.Sub == "" {
		return nil, fmt.Errorf("resolve identity: %w", apperr.ErrInvalidArgument)
	}

	var resolved *types.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.WithTx(ctx, tx)

		existing, err := r.identityRepo.GetByProviderSub(dbc, ident.Provider, ident.Sub)
		if err == nil {
			users, uErr := r.userRepo.GetByIDs(dbc, []uuid.UUID{existing.UserID})
			if uErr != nil {
				return fmt.Errorf("load linked user: %w", uErr)
			}
			if len(users) == 0 {
				return fmt.Errorf("identity %s/%s has no user", ident.Provider, ident.Sub)
			}
			resolved = users[0]
			// Token metadata refresh is opportunistic; the identity row
			// itself is untouched.
			if tErr := r.identityRepo.UpdateTokens(dbc, ident.Provider, ident.Sub, ident.AccessToken, ident.RefreshToken, ident.TokenExpiresAt); tErr != nil {
				r.log.Warn("token metadata refresh failed", "error", tErr)
			}
			return nil
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("lookup identity: %w", err)
		}

		byEmail, err := r.userRepo.GetByEmails(dbc, []string{ident.Email})
		if err != nil {
			return fmt.Errorf("lookup user by email: %w", err)
		}
		if len(byEmail) > 0 {
			user := byEmail[0]
			if lErr := r.createIdentity(dbc, user.ID, ident); lErr != nil {
				return lErr
			}
			resolved = user
			return nil
		}

		user := &types.User{
			ID:        uuid.New(),
			Username:  usernameFor(ident),
			Email:     ident.Email,
			FullName:  ident.FullName,
			AvatarURL: ident.AvatarURL,
			IsActive:  true,
		}
		created, cErr := r.userRepo.Create(dbc, []*types.User{user})
		if cErr != nil {
			return fmt.Errorf("create user: %w", cErr)
		}
		if lErr := r.createIdentity(dbc, created[0].ID, ident); lErr != nil {
			return lErr
		}
		resolved = created[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (r *identityResolver) LinkIdentity(ctx context.Context, userID uuid.UUID, ident *provider.Identity) error {
	if ident == nil || ident.Provider == "" || ident.Sub == "" {
		return fmt.Errorf("link identity: %w", apperr.ErrInvalidArgument)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return r.createIdentity(dbctx.WithTx(ctx, tx), userID, ident)
	})
}

func (r *identityResolver) ListIdentities(ctx context.Context, userID uuid.UUID) ([]*types.ExternalIdentity, error) {
	return r.identityRepo.GetByUserIDs(dbctx.New(ctx), []uuid.UUID{userID})
}

func (r *identityResolver) createIdentity(dbc dbctx.Context, userID uuid.UUID, ident *provider.Identity) error {
	row := &types.ExternalIdentity{
		ID:             uuid.New(),
		UserID:         userID,
		Provider:       ident.Provider,
		ProviderSub:    ident.Sub,
		Email:          ident.Email,
		AccessToken:    ident.AccessToken,
		RefreshToken:   ident.RefreshToken,
		TokenExpiresAt: ident.TokenExpiresAt,
	}
	if _, err := r.identityRepo.Create(dbc, []*types.ExternalIdentity{row}); err != nil {
		return fmt.Errorf("link identity: %w", err)
	}
	return nil
}

func usernameFor(ident *provider.Identity) string {
	if ident.Username != "" {
		return ident.Username
	}
	return strings.SplitN(ident.Email, "@", 2)[0]
}
