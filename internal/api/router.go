package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/internet-banking/internal/ledger"
	"github.com/example/internet-banking/internal/security"
	"github.com/example/internet-banking/pkg/audit"
)

// AccountDirectory is the account side of the ledger used by the handlers.
type AccountDirectory interface {
	CreateAccount(ctx context.Context, req ledger.CreateAccountRequest, actor string) (*ledger.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error)
	GetAccountByDocument(ctx context.Context, document string) (*ledger.Account, error)
	ListAccounts(ctx context.Context, filter ledger.AccountFilter) ([]*ledger.Account, error)
	DeactivateAccount(ctx context.Context, document, actor string) (*ledger.Account, error)
}

// Ledger is the transfer side of the ledger used by the handlers.
type Ledger interface {
	Transfer(ctx context.Context, req ledger.TransferRequest, actor string) (ledger.TransferResult, error)
	AccountTransactions(ctx context.Context, document string) ([]*ledger.Transaction, error)
	AccountTransactionsByID(ctx context.Context, accountID uuid.UUID) ([]*ledger.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)
}

type AuditReader interface {
	List(ctx context.Context, filter ledger.AuditFilter) ([]*ledger.AuditLog, error)
}

// Auditor records one access-trail line per request.
type Auditor interface {
	Append(payload string) *audit.LogEntry
	Recent() []*audit.LogEntry
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Logger *slog.Logger

	Accounts  AccountDirectory
	Transfers Ledger
	AuditLogs AuditReader
	Storage   Pinger

	Auditor      Auditor
	RateLimiter  *security.RedisFixedWindow
	IPAllowlist  []*net.IPNet
	CORSOrigins  []string
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	createAccountV, err := security.NewJSONSchemaValidator("create-account", createAccountSchema)
	if err != nil {
		return nil, err
	}
	transferV, err := security.NewJSONSchemaValidator("transfer", transferSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(RequestMetrics)
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", security.ActorHeader, security.CorrelationIDHeader},
			ExposedHeaders: []string{security.CorrelationIDHeader, auditStatusHeader, "X-RateLimit-Remaining"},
			MaxAge:         300,
		}))
	}
	r.Use(security.IPAllowlist(deps.IPAllowlist))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, security.ClientIPKey))
	}
	r.Use(security.MaxBodyBytes(deps.MaxBodyBytes))
	r.Use(security.Actor)
	if deps.Auditor != nil {
		r.Use(AuditMiddleware(deps.Auditor))
	}

	r.Get("/healthz", handleHealth(deps))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", handleListAccounts(deps))
		r.With(createAccountV.Middleware).Post("/", handleCreateAccount(deps))
		r.Get("/document/{document}", handleGetAccountByDocument(deps))
		r.Put("/document/{document}/deactivate", handleDeactivateAccount(deps))
		r.Get("/{id}", handleGetAccountByID(deps))
		r.Get("/{id}/transactions", handleAccountTransactionsByID(deps))
	})

	r.Route("/transfers", func(r chi.Router) {
		r.With(transferV.Middleware).Post("/", handleTransfer(deps))
		r.Get("/account/{document}", handleAccountTransactions(deps))
		r.Get("/{id}", handleGetTransfer(deps))
	})

	r.Route("/audit", func(r chi.Router) {
		r.Get("/", handleListAudit(deps))
		r.Get("/entity-type/{entityType}", handleListAuditByEntityType(deps))
		r.Get("/entity-id/{entityId}", handleListAuditByEntityID(deps))
		r.Get("/trail", handleAccessTrail(deps))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed")
	})

	return r, nil
}
