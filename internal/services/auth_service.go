package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/identity-backend/internal/auth/token"
	repos "github.com/yungbote/identity-backend/internal/data/repos/identity"
	types "github.com/yungbote/identity-backend/internal/domain/identity"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/pkg/dbctx"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

// LoginResult is the credential pair handed back after any successful
// authentication, local or provider-backed: a stateless token plus a
// durable session.
type LoginResult struct {
	User      *types.User
	Token     string
	SessionID uuid.UUID
	ExpiresIn int
}

// AuthService covers local-credential registration and login, and the
// shared post-authentication step of minting the token/session pair.
type AuthService interface {
	Register(ctx context.Context, email, username, password, fullName string) (*types.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// CompleteLogin mints the token and session for an already
	// authenticated user. The OAuth callback path lands here after
	// identity resolution.
	CompleteLogin(ctx context.Context, user *types.User) (*LoginResult, error)
}

type authService struct {
	db         *gorm.DB
	log        *logger.Logger
	userRepo   repos.UserRepo
	sessions   SessionManager
	codec      token.Codec
	accessTTL  time.Duration
	sessionTTL time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	sessions SessionManager,
	codec token.Codec,
	accessTTL time.Duration,
	sessionTTL time.Duration,
) AuthService {
	return &authService{
		db:         db,
		log:        log.With("service", "AuthService"),
		userRepo:   userRepo,
		sessions:   sessions,
		codec:      codec,
		accessTTL:  accessTTL,
		sessionTTL: sessionTTL,
	}
}

func (as *authService) Register(ctx context.Context, email, username, password, fullName string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password required: %w", apperr.ErrInvalidArgument)
	}
	if username == "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		ID:       uuid.New(),
		Username: username,
		Email:    email,
		FullName: fullName,
		Password: string(hash),
		IsActive: true,
	}
	created, err := as.userRepo.Create(dbctx.New(ctx), []*types.User{user})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	users, err := as.userRepo.GetByEmails(dbctx.New(ctx), []string{email})
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: unknown email", apperr.ErrUnauthenticated)
	}
	user := users[0]
	if user.Password == "" {
		// Provider-created account with no local credential.
		return nil, fmt.Errorf("%w: password login not available", apperr.ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid password", apperr.ErrUnauthenticated)
	}
	return as.CompleteLogin(ctx, user)
}

func (as *authService) CompleteLogin(ctx context.Context, user *types.User) (*LoginResult, error) {
	if user == nil {
		return nil, fmt.Errorf("complete login: %w", apperr.ErrInvalidArgument)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account disabled", apperr.ErrUnauthenticated)
	}

	signed, err := as.codec.Issue(user.ID, user.Username, user.Email, as.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	sessionID, err := as.sessions.Create(ctx, user, as.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &LoginResult{
		User:      user,
		Token:     signed,
		SessionID: sessionID,
		ExpiresIn: int(as.accessTTL.Seconds()),
	}, nil
}
