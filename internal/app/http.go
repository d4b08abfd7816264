package app

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/mentora-app/mentora-backend/internal/http/handlers"
	httpMW "github.com/mentora-app/mentora-backend/internal/http/middleware"
	"github.com/mentora-app/mentora-backend/internal/pkg/logger"
	"github.com/mentora-app/mentora-backend/internal/server"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Chat     *httpH.ChatHandler
	Credits  *httpH.CreditsHandler
	Payments *httpH.PaymentsHandler
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireHandlers(log *logger.Logger, cfg Config, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Chat:     httpH.NewChatHandler(s.Turn, s.Transcript),
		Credits:  httpH.NewCreditsHandler(s.Ledger, cfg.AdminToken),
		Payments: httpH.NewPaymentsHandler(s.Ledger, cfg.PaymentWebhookSecret),
	}
}

func wireRouter(log *logger.Logger, cfg Config, h Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:            log,
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.AllowedOrigins,

		AuthMiddleware: mw.Auth,

		HealthHandler:   h.Health,
		ChatHandler:     h.Chat,
		CreditsHandler:  h.Credits,
		PaymentsHandler: h.Payments,
	})
}
