package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yungbote/identity-backend/internal/auth/provider"
	"github.com/yungbote/identity-backend/internal/auth/state"
	"github.com/yungbote/identity-backend/internal/auth/token"
	"github.com/yungbote/identity-backend/internal/config"
	repos "github.com/yungbote/identity-backend/internal/data/repos/identity"
	httptransport "github.com/yungbote/identity-backend/internal/http"
	"github.com/yungbote/identity-backend/internal/http/handlers"
	httpMW "github.com/yungbote/identity-backend/internal/http/middleware"
	"github.com/yungbote/identity-backend/internal/pkg/apperr"
	"github.com/yungbote/identity-backend/internal/platform/cache"
	"github.com/yungbote/identity-backend/internal/platform/logger"
	"github.com/yungbote/identity-backend/internal/platform/postgres"
	"github.com/yungbote/identity-backend/internal/services"
)

func main() {
	// Env file is optional; real env wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	pg, err := postgres.New(log, cfg.PostgresDSN())
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	db := pg.DB()

	// Cache
	var cacheStore cache.Store
	if cfg.RedisAddr != "" {
		cacheStore, err = cache.NewRedis(log, cfg.RedisAddr)
		if err != nil {
			log.Fatal("Redis init failed", "error", err)
		}
	} else {
		log.Warn("REDIS_ADDR unset, using in-process cache")
		cacheStore = cache.NewMemory()
	}
	defer cacheStore.Close()

	// Repos
	userRepo := repos.NewUserRepo(db, log)
	identityRepo := repos.NewExternalIdentityRepo(db, log)
	sessionRepo := repos.NewSessionRepo(db, log)

	// Providers
	var clients []provider.Client
	if google, err := provider.NewGoogle(log, provider.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		DiscoveryURL: cfg.GoogleDiscoveryURL,
		HTTPTimeout:  cfg.ProviderHTTPTimeout,
	}); err == nil {
		clients = append(clients, google)
	} else if !isNotConfigured(err) {
		log.Fatal("Google provider init failed", "error", err)
	} else {
		log.Warn("Google provider not configured")
	}
	if github, err := provider.NewGithub(log, provider.GithubConfig{
		ClientID:     cfg.GithubClientID,
		ClientSecret: cfg.GithubClientSecret,
		HTTPTimeout:  cfg.ProviderHTTPTimeout,
	}); err == nil {
		clients = append(clients, github)
	} else if !isNotConfigured(err) {
		log.Fatal("GitHub provider init failed", "error", err)
	} else {
		log.Warn("GitHub provider not configured")
	}
	registry := provider.NewRegistry(clients...)

	// Services
	states := state.New(log, cacheStore, cfg.StateTTL)
	codec := token.NewCodec(cfg.JWTSecretKey)
	sessionManager := services.NewSessionManager(db, log, sessionRepo, cacheStore)
	identityResolver := services.NewIdentityResolver(db, log, userRepo, identityRepo)
	authService := services.NewAuthService(db, log, userRepo, sessionManager, codec, cfg.AccessTTL, cfg.SessionTTL)
	oauthService := services.NewOAuthService(log, registry, states, identityResolver, authService, cfg.BackendURL)
	authResolver := services.NewAuthResolver(log, codec, sessionManager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessionManager.StartSweeper(ctx, cfg.SweepInterval)

	// Handlers and middleware
	authHandler := handlers.NewAuthHandler(
		oauthService,
		authService,
		sessionManager,
		identityResolver,
		cfg.FrontendURL,
		int(cfg.SessionTTL.Seconds()),
	)
	authMiddleware := httpMW.NewAuthMiddleware(log, authResolver)

	server := httptransport.NewServer(httptransport.RouterConfig{
		Log:            log,
		FrontendURL:    cfg.FrontendURL,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		HealthHandler:  handlers.NewHealthHandler(),
	})

	log.Info("Server listening", "port", cfg.Port)
	if err := server.Run(":" + cfg.Port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}

func isNotConfigured(err error) bool {
	return errors.Is(err, apperr.ErrProviderNotConfigured)
}
