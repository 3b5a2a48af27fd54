package server

import (
	"context"
	"errors"
	"net/http"

	"jornada/pkg/config"
	"jornada/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	fx.Provide(
		NewEngine,
		NewHttpServer,
	),
	fx.Invoke(Run),
)

// Server is the public HTTP listener. certs is nil when TLS is disabled.
type Server struct {
	server *http.Server
	certs  *CertReloader
	log    *zap.Logger
	stop   context.CancelFunc
}

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Error(),
	)
	return r
}

// CORS wraps h for the SPA origins configured in HTTP_SERVER.CORS_ORIGINS.
func CORS(cfg *config.Config, h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			middleware.HeaderRequestID,
			middleware.HeaderWebhookSecret,
			middleware.HeaderAdminKey,
		},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: true,
	}).Handler(h)
}

type Params struct {
	fx.In
	Config *config.Config
	Engine *gin.Engine
	Logger *zap.Logger
}

func NewHttpServer(p Params) (*Server, error) {
	cfg := p.Config
	srv := &Server{
		server: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      CORS(cfg, p.Engine),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		log: p.Logger.Named("http"),
	}

	if cfg.TLS.Enable {
		certs, err := NewCertReloader(cfg.TLS.CertPath, cfg.TLS.KeyPath, p.Logger)
		if err != nil {
			return nil, err
		}
		srv.certs = certs
		srv.server.TLSConfig = certs.TLSConfig()
	}

	return srv, nil
}

func (s *Server) serve() error {
	if s.certs == nil {
		return s.server.ListenAndServe()
	}
	// certificates come from GetCertificate
	return s.server.ListenAndServeTLS("", "")
}

func Run(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			srv.stop = cancel
			if srv.certs != nil {
				go srv.certs.Watch(ctx)
			}

			srv.log.Info("listening", zap.String("addr", srv.server.Addr), zap.Bool("tls", srv.certs != nil))
			go func() {
				if err := srv.serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					srv.log.Error("server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.log.Info("shutting down")
			srv.stop()
			return srv.server.Shutdown(ctx)
		},
	})
}
