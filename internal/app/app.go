// Package app wires configuration, storage and the ledger services shared by the binaries.
package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/internet-banking/internal/config"
	"github.com/example/internet-banking/internal/ledger"
	"github.com/example/internet-banking/internal/security"
)

func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// ServerTLSConfig builds the listener TLS configuration shared by the HTTP and gRPC servers.
// It returns nil when TLS is not configured.
func ServerTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if !cfg.TLSEnabled() {
		return nil, nil
	}
	if err := security.VerifyTLSFiles(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSClientCAFile); err != nil {
		return nil, err
	}
	return security.LoadServerTLSConfig(security.TLSConfig{
		CertFile:          cfg.TLSCertFile,
		KeyFile:           cfg.TLSKeyFile,
		CAFile:            cfg.TLSClientCAFile,
		RequireClientAuth: cfg.TLSRequireClientCert,
	})
}

// OpenStore connects the configured gateway, checks it answers and applies the schema when
// DB_AUTO_MIGRATE is set.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, error) {
	retry := ledger.RetryPolicy{
		MaxAttempts: cfg.DBRetryAttempts,
		BaseDelay:   cfg.DBRetryBaseDelay,
		Timeout:     cfg.DBTimeout,
	}

	var store ledger.Store
	switch cfg.DBDriver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		store = ledger.NewPostgresStore(pool, retry)
	case config.DriverSQLite:
		s, err := ledger.OpenSQLite(cfg.DatabaseURL, retry)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.DBTimeout)
	defer cancel()
	if err := store.Ping(pctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.DBDriver, err)
	}

	if cfg.DBAutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
		logger.InfoContext(ctx, "schema applied", "driver", cfg.DBDriver)
	}

	return store, nil
}

type Services struct {
	Accounts  *ledger.AccountService
	Transfers *ledger.TransferService
	Audit     *ledger.AuditService
}

func NewServices(store ledger.Store, logger *slog.Logger) *Services {
	audit := ledger.NewAuditService(store, logger)
	return &Services{
		Accounts:  ledger.NewAccountService(store, audit, logger),
		Transfers: ledger.NewTransferService(store, audit, logger),
		Audit:     audit,
	}
}
