package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/wingspan-tracker/internal/common"
)

// ScanServiceName is the health service name reported for the upload pipeline.
const ScanServiceName = "wingspan.scores.v1.ScanService"

// NewGRPCServer returns a gRPC server carrying only the health and reflection services,
// so orchestrators can probe the daemon the same way as the rest of the fleet.
func NewGRPCServer(logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ScanServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(gs)
	return gs, hs
}

// WatchHealth flips the scan service to NOT_SERVING while check fails.
func WatchHealth(ctx context.Context, hs *health.Server, check HealthFunc, every time.Duration, logger *slog.Logger) {
	if check == nil {
		return
	}
	if every <= 0 {
		every = 15 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	last := healthpb.HealthCheckResponse_SERVING
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			next := healthpb.HealthCheckResponse_SERVING
			if err := check(ctx); err != nil {
				next = healthpb.HealthCheckResponse_NOT_SERVING
			}
			if next != last {
				logger.Warn("grpc.health.changed", "service", ScanServiceName, "status", next.String())
				hs.SetServingStatus(ScanServiceName, next)
				last = next
			}
		}
	}
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if _, ok := status.FromError(err); !ok {
			err = common.ToStatus(err, "internal error")
		}
		logger.Debug("grpc.call",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
