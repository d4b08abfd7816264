package server

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mentora-app/mentora-backend/internal/http/handlers"
	"github.com/mentora-app/mentora-backend/internal/http/middleware"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins string

	AuthMiddleware *middleware.AuthMiddleware

	HealthHandler   *handlers.HealthHandler
	ChatHandler     *handlers.ChatHandler
	CreditsHandler  *handlers.CreditsHandler
	PaymentsHandler *handlers.PaymentsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RequestLogger(cfg.Log))

	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)

	api := router.Group("/api")

	// Chat is open to anonymous callers; the orchestrator gates what they
	// may do per turn.
	chat := api.Group("/chat")
	chat.Use(cfg.AuthMiddleware.OptionalAuth())
	{
		chat.POST("/turns", cfg.ChatHandler.SubmitTurn)
		chat.GET("/threads/:id", cfg.ChatHandler.GetThread)
		chat.GET("/threads/:id/messages", cfg.ChatHandler.ListMessages)
	}

	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.GET("/chat/threads", cfg.ChatHandler.ListThreads)
		protected.GET("/credits/balance", cfg.CreditsHandler.GetBalance)
		protected.GET("/credits/history", cfg.CreditsHandler.GetHistory)
	}

	// Machine-to-machine surfaces use their own shared-secret auth.
	api.POST("/payments/callback", cfg.PaymentsHandler.PurchaseCallback)
	api.POST("/admin/credits/gift", cfg.CreditsHandler.GiftCredits)

	return router
}
