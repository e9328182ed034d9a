package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/ludo-game/internal/middleware"
	"github.com/wfunc/ludo-game/internal/service"
	ws "github.com/wfunc/ludo-game/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	hub            *ws.Hub
	services       *service.Services
	authHandler    *AuthHandler
	walletHandler  *WalletHandler
	ludoHandler    *LudoHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
// WebSocket Hub作为通知器注入服务层，对局推送经Hub下发
func NewRouter(db *gorm.DB, config *service.Config, webhookSecret string, log *zap.Logger) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	// 创建Hub与服务
	hub := ws.NewHub(log)
	services := service.NewServices(db, config, hub, log)

	// 创建处理器
	authHandler := NewAuthHandler(services.Auth)
	walletHandler := NewWalletHandler(services.Ledger, webhookSecret, log)
	ludoHandler := NewLudoHandler(services.Ludo)
	wsHandler := NewWebSocketHandler(hub, log)

	// 创建中间件
	authMiddleware := middleware.NewAuthMiddleware(services.Auth)

	router := &Router{
		engine:         engine,
		db:             db,
		hub:            hub,
		services:       services,
		authHandler:    authHandler,
		walletHandler:  walletHandler,
		ludoHandler:    ludoHandler,
		wsHandler:      wsHandler,
		authMiddleware: authMiddleware,
		log:            log,
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)
		}

		// 支付网关回调（验签，不走JWT）
		v1.POST("/payments/webhook", r.walletHandler.PaymentWebhook)

		// 钱包相关路由（需要认证）
		wallet := v1.Group("/wallet")
		wallet.Use(r.authMiddleware.RequireAuth())
		{
			wallet.GET("/balance", r.walletHandler.GetBalance)
			wallet.GET("/transactions", r.walletHandler.GetTransactions)
		}

		// 对局相关路由（需要认证）
		ludo := v1.Group("/ludo")
		ludo.Use(r.authMiddleware.RequireAuth())
		{
			ludo.GET("/games", r.ludoHandler.ListOpenGames)
			ludo.POST("/games", r.ludoHandler.CreateGame)
			ludo.GET("/games/mine", r.ludoHandler.ListMyGames)
			ludo.GET("/games/:id", r.ludoHandler.GetGame)
			ludo.POST("/games/:id/join", r.ludoHandler.JoinGame)
			ludo.POST("/games/:id/cancel", r.ludoHandler.CancelGame)
			ludo.POST("/games/:id/actions", r.ludoHandler.SubmitAction)
		}
	}

	// WebSocket路由
	wsGroup := r.engine.Group("/ws")
	wsGroup.Use(r.authMiddleware.RequireAuth())
	{
		wsGroup.GET("/game", r.wsHandler.GameWebSocket)
	}

	// Swagger文档（-tags swagger 时启用）
	registerSwaggerRoutes(r.engine)

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	dbOK := err == nil && sqlDB.Ping() == nil

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":    map[bool]string{true: "ok", false: "degraded"}[dbOK],
		"database":  dbOK,
		"online":    r.hub.OnlineCount(),
		"timestamp": time.Now().Unix(),
	})
}

// Engine 返回Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Services 返回服务集合
func (r *Router) Services() *service.Services {
	return r.services
}

// Hub 返回WebSocket Hub
func (r *Router) Hub() *ws.Hub {
	return r.hub
}
