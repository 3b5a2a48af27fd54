package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"
)

var Module = fx.Module("health",
	fx.Provide(ProvideHealth),
	fx.Invoke(RegisterProbe),
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Health struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Deps    []Dependency `json:"deps,omitempty"`
}

type Checker struct {
	db    *gorm.DB
	redis *redis.Client
	grpc  *grpchealth.Server
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) *Checker {
	return &Checker{
		db:    p.DB,
		redis: p.Redis,
		grpc:  grpchealth.NewServer(),
	}
}

func (h *Checker) GRPC() *grpchealth.Server {
	return h.grpc
}

func (h *Checker) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, &Health{
		Status:  statusHealthy,
		Message: "OK",
	})
}

func (h *Checker) Readiness(c *gin.Context) {
	deps, ok := h.Check(c.Request.Context())

	res := &Health{Status: statusHealthy, Message: "OK", Deps: deps}
	code := http.StatusOK
	if !ok {
		res.Status = statusUnhealthy
		res.Message = "dependency unavailable"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, res)
}

// Check pings the database and redis (when wired).
func (h *Checker) Check(ctx context.Context) ([]Dependency, bool) {
	deps := make([]Dependency, 0, 2)
	healthy := true

	if h.db != nil {
		dep := Dependency{Name: h.db.Dialector.Name(), Status: statusHealthy, Message: "OK"}
		if sqlDB, err := h.db.DB(); err != nil {
			dep.Status, dep.Message = statusUnhealthy, err.Error()
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dep.Status, dep.Message = statusUnhealthy, err.Error()
		}
		healthy = healthy && dep.Status == statusHealthy
		deps = append(deps, dep)
	}

	if h.redis != nil {
		dep := Dependency{Name: "redis", Status: statusHealthy, Message: "OK"}
		if err := h.redis.Ping(ctx).Err(); err != nil {
			dep.Status, dep.Message = statusUnhealthy, err.Error()
		}
		healthy = healthy && dep.Status == statusHealthy
		deps = append(deps, dep)
	}

	return deps, healthy
}

func (h *Checker) probe(ctx context.Context) {
	_, ok := h.Check(ctx)
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if !ok {
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.grpc.SetServingStatus("", st)
}

// RegisterProbe keeps the gRPC health status in sync with the dependency checks.
func RegisterProbe(lc fx.Lifecycle, h *Checker) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(10 * time.Second)
				defer ticker.Stop()

				h.probe(ctx)
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						h.probe(ctx)
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			<-done
			h.grpc.Shutdown()
			zap.L().Info("health probe stopped")
			return nil
		},
	})
}
