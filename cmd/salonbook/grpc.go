package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/jwseo/salonbook/libs/config"
	"github.com/jwseo/salonbook/libs/db"
	"github.com/jwseo/salonbook/libs/grpcx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"
)

// startGrpcHealthServer exposes the standard gRPC health protocol so
// sidecar probes and service meshes can watch readiness without the
// HTTP surface. Health follows the database: a failed ping flips the
// status to NOT_SERVING until the next successful check.
func startGrpcHealthServer(ctx context.Context, logger *slog.Logger, pool *db.Pool) error {
	port, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcx.UnaryServerRequestIDInterceptor()),
	)
	healthSrv := health.NewServer()
	healthv1.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", healthv1.HealthCheckResponse_SERVING)

	check := db.ReadyCheck(pool)
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				status := healthv1.HealthCheckResponse_SERVING
				if err := check(pingCtx); err != nil {
					status = healthv1.HealthCheckResponse_NOT_SERVING
				}
				cancel()
				healthSrv.SetServingStatus("", status)
			}
		}
	}()

	go func() {
		logger.Info("grpc health server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc health server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return nil
}
