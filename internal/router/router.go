package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reviewlens/reviewlens/internal/config"
	"github.com/reviewlens/reviewlens/internal/handler"
	"github.com/reviewlens/reviewlens/internal/middleware"
	"github.com/reviewlens/reviewlens/internal/model"
	"github.com/reviewlens/reviewlens/internal/service"
)

// Deps carries everything route registration needs.  Rdb may be nil, in
// which case rate limiting and response caching are disabled.
type Deps struct {
	Auth   *handler.AuthHandler
	Admin  *handler.AdminHandler
	Access *service.AccessControl
	Usage  *service.UsageRecorder
	Rdb    *redis.Client
	Log    *zap.Logger
}

// Register wires all routes onto the provided Echo instance.
//
//	/healthz                     – liveness, no auth
//	/v1/auth/*                   – register, login, refresh (rate limited)
//	/v1/*                        – protected by Authenticate + usage recording
//	/v1/admin/*                  – additionally gated by RequireRole("admin")
func Register(e *echo.Echo, d Deps) {
	// Health check for load balancers and monitoring; stays outside
	// every middleware chain.
	e.GET("/healthz", handler.Health)

	// Unauthenticated credential exchange.  The token bucket throttles
	// password guessing per ip+route across all instances.
	authGroup := e.Group("/v1/auth")
	authGroup.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Rdb, d.Log))
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/refresh", d.Auth.Refresh)
	// Logout needs the bearer token it revokes but resolves it itself,
	// so it lives here rather than behind Authenticate.
	authGroup.POST("/logout", d.Auth.Logout)

	// Protected endpoints: credential resolution first, then usage
	// accounting for every request that produced a principal.
	protected := e.Group("/v1")
	protected.Use(middleware.Authenticate(d.Access, d.Log))
	protected.Use(middleware.RecordUsage(d.Usage))
	protected.GET("/me", d.Auth.Me)
	protected.POST("/password", d.Auth.ChangePassword)
	protected.POST("/api-key", d.Auth.RegenerateAPIKey)

	// Administrative endpoints.
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(model.RoleAdmin))
	admin.GET("/users", d.Admin.ListUsers)
	admin.POST("/users/:id/toggle-active", d.Admin.ToggleActive)
	admin.GET("/usage-stats", d.Admin.UsageStats,
		middleware.NewResponseCache(config.LoadCacheConfig(), d.Rdb, d.Log))
}
