package rpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/internet-banking/api/gen/banking"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewGRPCServer builds a server with the banking service, the standard health service and
// reflection registered.
func NewGRPCServer(srv *Server, hs *health.Server, logger *slog.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(1024 * 1024),
		grpc.MaxSendMsgSize(4 * 1024 * 1024),
		UnaryInterceptors(logger),
	}, opts...)

	s := grpc.NewServer(opts...)
	banking.RegisterBankingServiceServer(s, srv)
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s
}

// WatchStorage flips the health status of the banking service with the storage ping result
// until ctx is done.
func WatchStorage(ctx context.Context, hs *health.Server, p Pinger, every time.Duration, logger *slog.Logger) {
	check := func() {
		pctx, cancel := context.WithTimeout(ctx, every)
		defer cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err := p.Ping(pctx); err != nil {
			logger.WarnContext(ctx, "storage ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(banking.BankingService_ServiceDesc.ServiceName, st)
	}

	check()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
