package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"

	"github.com/example/internet-banking/internal/app"
	"github.com/example/internet-banking/internal/config"
	"github.com/example/internet-banking/internal/rpc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	services := app.NewServices(store, logger)

	tlsCfg, err := app.ServerTLSConfig(cfg)
	if err != nil {
		logger.Error("failed to load TLS config", "error", err)
		os.Exit(1)
	}
	var opts []grpc.ServerOption
	if tlsCfg != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	hs := health.NewServer()
	grpcServer := rpc.NewGRPCServer(
		rpc.NewServer(services.Accounts, services.Transfers, services.Audit, logger),
		hs,
		logger,
		opts...,
	)
	go rpc.WatchStorage(ctx, hs, store, 15*time.Second, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down gRPC server")
		hs.Shutdown()
		grpcServer.GracefulStop()
	}()

	logger.Info("banking gRPC server listening", "addr", cfg.GRPCAddr, "tls", cfg.TLSEnabled())
	if err := grpcServer.Serve(lis); err != nil {
		logger.Error("failed to serve", "error", err)
		os.Exit(1)
	}
}
