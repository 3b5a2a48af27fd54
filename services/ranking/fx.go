package ranking

import (
	"jornada/pkg/config"
	"jornada/pkg/middleware"
	"jornada/pkg/taskname"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("ranking.service",
	fx.Provide(NewService),
)

var Gateway = fx.Module("ranking.gateway",
	fx.Provide(NewHandler),
	fx.Invoke(registerRoutes, registerInvalidationWatcher),
)

var Worker = fx.Module("ranking.worker",
	fx.Invoke(registerTaskHandlers),
)

func registerRoutes(r *gin.Engine, cfg *config.Config, h *Handler) {
	g := r.Group("/api/projects/:projectId/ranking")
	g.GET("", h.List)
	g.GET("/top", h.Top)
	g.POST("/reconcile", middleware.AdminKey(cfg.Admin.ApiKey), h.Reconcile)
}

func registerTaskHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(taskname.RankingReconcile, s.HandleReconcileTask)
}
