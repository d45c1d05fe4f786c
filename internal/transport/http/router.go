package httptransport

import (
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"aliaskit/client/internal/auth"
	jwtpkg "aliaskit/client/internal/auth/jwt"
	"aliaskit/client/internal/config"
	"aliaskit/client/internal/health"
	"aliaskit/client/internal/middleware"
	"aliaskit/client/internal/monitoring"
	"aliaskit/client/internal/repository"
	"aliaskit/client/internal/websocket"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       config.BridgeConfig
	Repository   *repository.AliasRepository
	AuthService  *auth.Service
	JWTManager   *jwtpkg.Manager
	WebSocketHub *websocket.Hub
	Health       *health.HealthChecker
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
}

// NewRouter 创建本地桥接服务的 Gin 路由。
//
// 除健康检查和指标外，所有接口都要求会话令牌。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, deps.Logger)
	router.Use(monitor.PanicRecovery())
	router.Use(monitor.HTTPMetrics())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	aliasHandler := NewAliasHandler(deps.Repository, deps.Logger)
	accountHandler := NewAccountHandler(deps.AuthService, deps.Config.SessionTTL, deps.Logger)
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Logger)

	// 健康检查与指标
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))

	// 会话
	router.GET("/session", jwtAuth.RequireAuth(), accountHandler.StartSession)

	// WebSocket 推送
	if deps.WebSocketHub != nil {
		router.GET("/ws", jwtAuth.RequireAuth(), websocket.HandleWebSocket(deps.WebSocketHub))
	}

	api := router.Group("/api", jwtAuth.RequireAuth(), middleware.ValidateContentType("application/json"))
	{
		// ========== Account Routes ==========
		account := api.Group("/account")
		{
			account.POST("/login", accountHandler.Login)
			account.POST("/mfa", accountHandler.VerifyMFA)
			account.POST("/api-key", accountHandler.UseAPIKey)
			account.GET("/me", accountHandler.Me)
			account.POST("/logout", accountHandler.Logout)
		}

		// ========== Alias Routes ==========
		aliases := api.Group("/aliases")
		{
			aliases.GET("", aliasHandler.snapshot)
			aliases.POST("", aliasHandler.create)
			aliases.POST("/fetch", aliasHandler.fetch)
			aliases.POST("/search", aliasHandler.search)
			aliases.POST("/random", aliasHandler.createRandom)
			aliases.GET("/cached", aliasHandler.cached)
			aliases.PATCH("/:id", aliasHandler.update)
			aliases.DELETE("/:id", aliasHandler.delete)
			aliases.POST("/:id/toggle", aliasHandler.toggle)
			aliases.GET("/:id/activities", aliasHandler.activities)
		}

		api.GET("/creation-context", aliasHandler.creationContext)
	}

	return router
}
