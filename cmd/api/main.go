package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/internet-banking/internal/api"
	"github.com/example/internet-banking/internal/app"
	"github.com/example/internet-banking/internal/config"
	"github.com/example/internet-banking/internal/security"
	"github.com/example/internet-banking/pkg/audit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	allowlist, err := security.ParseCIDRAllowlist(cfg.IPAllowlist)
	if err != nil {
		logger.Error("invalid API_IP_ALLOWLIST", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	services := app.NewServices(store, logger)

	var limiter *security.RedisFixedWindow
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		limiter = &security.RedisFixedWindow{
			Redis:  redisClient,
			Prefix: "banking_api",
			Limit:  cfg.RateLimit,
			Window: cfg.RateWindow,
		}
	} else {
		logger.Warn("REDIS_ADDR not set, rate limiting disabled")
	}

	// Every access-trail line is also shipped to the structured log so it outlives retention.
	trail := audit.NewChainLogger(audit.WithSink(func(e *audit.LogEntry) {
		logger.Info("access_trail", "seq", e.Seq, "hash", e.Hash, "prev", e.PreviousHash, "payload", e.Payload)
	}))

	router, err := api.NewRouter(api.Dependencies{
		Logger:       logger,
		Accounts:     services.Accounts,
		Transfers:    services.Transfers,
		AuditLogs:    services.Audit,
		Storage:      store,
		Auditor:      trail,
		RateLimiter:  limiter,
		IPAllowlist:  allowlist,
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	tlsCfg, err := app.ServerTLSConfig(cfg)
	if err != nil {
		logger.Error("failed to load TLS config", "error", err)
		os.Exit(1)
	}
	srv.TLSConfig = tlsCfg

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("banking api listening",
		"addr", cfg.APIAddr,
		"env", cfg.Environment,
		"driver", cfg.DBDriver,
		"tls", cfg.TLSEnabled(),
		"client_cert_required", cfg.TLSRequireClientCert,
	)

	if cfg.TLSEnabled() {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
