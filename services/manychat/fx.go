package manychat

import (
	"jornada/pkg/config"
	"jornada/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("manychat.service",
	fx.Provide(NewService),
)

var Gateway = fx.Module("manychat.gateway",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, cfg *config.Config, h *Handler) {
	g := r.Group("/integrations/manychat")
	g.POST("/webhook", middleware.WebhookSecret(cfg.Manychat.WebhookSecret), h.Webhook)
	g.POST("/webhook/test", middleware.AdminKey(cfg.Admin.ApiKey), h.Test)
}
