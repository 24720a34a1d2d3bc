package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"shortlink-analytics/internal/config"
	"shortlink-analytics/internal/middleware"
	auth "shortlink-analytics/pkg/jwt"
)

// Handlers 路由需要的全部处理器
type Handlers struct {
	Redirect  *RedirectHandler
	Links     *LinkHandler
	Dashboard *DashboardHandler
	Auth      *AuthHandler
	Health    *HealthHandler
}

// RouterOptions 路由的公共依赖
type RouterOptions struct {
	Logger       *zap.Logger
	TokenManager *auth.TokenManager
	RateLimit    *config.Limit
	// Gatherer 为 nil 时不注册 /metrics
	Gatherer prometheus.Gatherer
}

// NewRouter 注册中间件和路由
func NewRouter(h Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.GinZapRecovery(opts.Logger, true))
	router.Use(middleware.GinZapLogger(opts.Logger))
	router.Use(middleware.RateLimit(opts.RateLimit))

	router.GET("/health", h.Health.HealthCheck)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/register", h.Auth.Register)
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(opts.TokenManager))
	{
		api.GET("/me", h.Auth.GetCurrentUser)
		api.GET("/dashboard", h.Dashboard.GetDashboard)
		api.POST("/links", h.Links.CreateLink)
		api.GET("/links", h.Links.ListLinks)
		api.GET("/links/:id", h.Links.GetLink)
		api.PUT("/links/:id", h.Links.UpdateLink)
		api.DELETE("/links/:id", h.Links.DeleteLink)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/users/:id/dashboard", h.Dashboard.GetUserDashboard)
	}

	// 短码和 /api、/auth 等前缀不冲突，放在最后注册
	router.GET("/:slug", h.Redirect.Redirect)

	return router
}
