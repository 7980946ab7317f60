package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/courtbook/webhook-service/internal/config"
	"github.com/courtbook/webhook-service/internal/service"
)

func NewRouter(svc *service.WebhookService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	RegisterHandlers(r, svc)
	return r
}
