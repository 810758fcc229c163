package http

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cybercongress/cyberauth/service"
)

// RouterConfig holds transport settings
type RouterConfig struct {
	ServiceKey string                          // guards /auth/web3/cleanup when set
	Ready      func(ctx context.Context) error // backing store check behind /healthz
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), MetricsMiddleware())

	// Create handlers
	handlers := NewAuthHandlers(authService)
	handlers.ready = cfg.Ready

	router.GET("/healthz", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Web3 auth routes
	web3 := router.Group("/auth/web3")
	{
		web3.POST("/challenge", handlers.Challenge)
		web3.POST("/verify", handlers.Verify)
		web3.POST("/cleanup", ServiceKeyMiddleware(cfg.ServiceKey), handlers.Cleanup)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
