package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prequal-service/internal/config"
	"prequal-service/internal/service"
)

func NewRouter(svc *service.ApplicationService, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	if rl.RPS > 0 {
		r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	}
	RegisterHandlers(r, svc)
	return r
}
