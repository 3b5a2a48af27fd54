package httpapi

import (
	"jornada/pkg/health"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

// Module mounts the operational endpoints on the gin engine.
var Module = fx.Module("httpapi",
	fx.Invoke(RegisterOpsRoutes),
)

func RegisterOpsRoutes(r *gin.Engine, h *health.Checker) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
