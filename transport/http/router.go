package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/rola/internal/metrics"
	"github.com/layer-3/rola/service"
	"go.uber.org/zap"
)

// Options carries the router's optional collaborators
type Options struct {
	Logger         *zap.Logger
	Metrics        metrics.Recorder
	MetricsHandler http.Handler  // Served on /metrics when set
	ChallengeLimit *RateLimiter // Applied to /auth/challenge when set

	// TrustedProxies may set the client IP through X-Forwarded-For. When empty the
	// client IP is always the connection's remote address.
	TrustedProxies []string
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		opts.Logger.Error("invalid trusted proxies, forwarding headers are ignored",
			zap.Strings("trusted_proxies", opts.TrustedProxies),
			zap.Error(err),
		)
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery(), RequestLogger(opts.Logger, opts.Metrics))

	// Create handlers
	handlers := NewAuthHandlers(authService)

	router.GET("/", handlers.Root)
	router.GET("/healthz", handlers.Health)
	if opts.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	// Auth routes
	auth := router.Group("/auth")
	{
		challenge := []gin.HandlerFunc{handlers.Challenge}
		if opts.ChallengeLimit != nil {
			challenge = append([]gin.HandlerFunc{opts.ChallengeLimit.Middleware()}, challenge...)
		}
		auth.GET("/challenge", challenge...)
		auth.POST("/authenticate", handlers.Authenticate)
	}

	router.GET("/personas", handlers.Personas)
	router.GET("/transactions", handlers.Transactions)

	return router
}
