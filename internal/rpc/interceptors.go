package rpc

import (
	"context"
	"crypto/x509"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/example/internet-banking/internal/security"
)

// ActorMetadataKey is the metadata counterpart of the X-Actor HTTP header.
const ActorMetadataKey = "x-actor"

var (
	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "banking_grpc_requests_total",
			Help: "Total number of gRPC requests by method and status code",
		},
		[]string{"method", "code"},
	)

	grpcRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "banking_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method"},
	)
)

// UnaryInterceptors returns the chain every unary call passes through, outermost first.
func UnaryInterceptors(logger *slog.Logger) grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(
		recoverUnary(logger),
		metricsUnary,
		loggingUnary(logger),
		actorUnary,
	)
}

func recoverUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorContext(ctx, "rpc panic", "method", info.FullMethod, "panic", p, "stack", string(debug.Stack()))
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func metricsUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	grpcRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	grpcRequestDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	return resp, err
}

func loggingUnary(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		level := slog.LevelInfo
		switch code {
		case codes.Internal, codes.Unknown, codes.Unavailable:
			level = slog.LevelError
		}
		logger.Log(ctx, level, "grpc_request",
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

// actorUnary resolves the caller from a verified peer certificate or the x-actor metadata.
func actorUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var chains [][]*x509.Certificate
	if p, ok := peer.FromContext(ctx); ok {
		if tlsInfo, ok := p.AuthInfo.(credentials.TLSInfo); ok {
			chains = tlsInfo.State.VerifiedChains
		}
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(ActorMetadataKey); len(v) > 0 {
			header = v[0]
		}
	}

	actor, err := security.ResolveActor(chains, header)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return handler(security.WithActor(ctx, actor), req)
}
