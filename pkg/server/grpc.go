package server

import (
	"context"
	"net"

	"jornada/pkg/config"
	"jornada/pkg/health"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ProvideGRPCServer serves the grpc.health.v1 service for orchestrator probes.
var ProvideGRPCServer = fx.Module("grpc.server",
	fx.Provide(
		NewListener,
		NewGRPCServer,
	),
	fx.Invoke(
		StartGRPCServer,
	),
)

func NewListener(cfg *config.Config) (net.Listener, error) {
	return net.Listen("tcp", cfg.Grpc.Addr)
}

// WithTLS hands out the reloader's current pair on each handshake.
func WithTLS(certs *CertReloader) grpc.ServerOption {
	return grpc.Creds(credentials.NewTLS(certs.TLSConfig()))
}

func NewGRPCServer(cfg *config.Config, checker *health.Checker, log *zap.Logger) (*grpc.Server, error) {
	var opts []grpc.ServerOption
	if cfg.TLS.Enable {
		certs, err := NewCertReloader(cfg.TLS.CertPath, cfg.TLS.KeyPath, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTLS(certs))
	}

	srv := grpc.NewServer(opts...)
	grpc_health_v1.RegisterHealthServer(srv, checker.GRPC())
	reflection.Register(srv)

	return srv, nil
}

func StartGRPCServer(lc fx.Lifecycle, lis net.Listener, srv *grpc.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				zap.L().Info("Starting gRPC server", zap.String("addr", lis.Addr().String()))
				if err := srv.Serve(lis); err != nil {
					zap.L().Error("gRPC server exited", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Stopping gRPC server")
			srv.GracefulStop()
			return nil
		},
	})
}
