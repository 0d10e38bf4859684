package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/identity-backend/internal/http/handlers"
	httpMW "github.com/yungbote/identity-backend/internal/http/middleware"
	"github.com/yungbote/identity-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	FrontendURL    string
	AuthHandler    *httpH.AuthHandler
	AuthMiddleware *httpMW.AuthMiddleware
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.FrontendURL))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api/v1")
	{
		// Public
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
			api.GET("/auth/:provider/login", cfg.AuthHandler.OAuthLogin)
			api.GET("/auth/:provider/callback", cfg.AuthHandler.OAuthCallback)
			// Session inspection authenticates by cookie itself.
			api.GET("/auth/session", cfg.AuthHandler.Session)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}
		if cfg.AuthHandler != nil {
			protected.POST("/auth/logout", cfg.AuthHandler.Logout)
			protected.GET("/auth/me", cfg.AuthHandler.Me)
			protected.GET("/me/identities", cfg.AuthHandler.MyIdentities)
		}
	}

	return r
}
