// Package health exposes grpc.health.v1.Health, reporting SERVING while the database answers.
package health

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/config"
	"github.com/Rogue-Bear-Innovations/foodgram-back/internal/db"
)

const ServiceName = "foodgram"

var Module = fx.Options(
	fx.Provide(NewGRPCServer),
	fx.Invoke(func(*Server) {}),
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	grpc_health_v1.UnimplementedHealthServer

	db     Pinger
	logger *zap.SugaredLogger
}

func NewServer(p Pinger, logger *zap.SugaredLogger) *Server {
	return &Server{db: p, logger: logger}
}

// Register attaches the health service to g.
func (s *Server) Register(g *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(g, s)
}

func NewGRPCServer(lc fx.Lifecycle, cfg *config.Config, store *db.Store, logger *zap.SugaredLogger) *Server {
	instance := NewServer(store, logger)

	grpcServer := grpc.NewServer()
	instance.Register(grpcServer)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
			if err != nil {
				return errors.Wrap(err, "failed to listen")
			}
			go func() {
				if err := grpcServer.Serve(lis); err != nil {
					logger.Errorw("grpc server stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping GRPC server.")
			grpcServer.GracefulStop()
			return nil
		},
	})

	return instance
}

func (s *Server) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warnw("database ping failed", "error", err)
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}
