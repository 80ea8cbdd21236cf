package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/internet-banking/internal/ledger"
	"github.com/example/internet-banking/internal/security"
)

type createAccountRequest struct {
	ClientName string `json:"clientName"`
	Document   string `json:"document"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func views(accounts []*ledger.Account) []ledger.AccountView {
	out := make([]ledger.AccountView, len(accounts))
	for i, a := range accounts {
		out[i] = a.View()
	}
	return out
}

func handleHealth(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Storage != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Storage.Ping(ctx); err != nil {
				deps.Logger.WarnContext(r.Context(), "health check failed", "error", err)
				security.WriteJSONError(w, r, http.StatusServiceUnavailable, "storage_unavailable")
				return
			}
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if err := decodeJSON(r, &req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		account, err := deps.Accounts.CreateAccount(r.Context(), ledger.CreateAccountRequest{
			ClientName: req.ClientName,
			Document:   req.Document,
		}, security.ActorFromContext(r.Context()))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		w.Header().Set("Location", "/accounts/"+account.ID.String())
		writeJSON(w, r, http.StatusCreated, account.View())
	}
}

// handleListAccounts applies at most one of name, document and status, in that order.
func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ledger.AccountFilter{
			Name:     q.Get("name"),
			Document: q.Get("document"),
		}
		if v := q.Get("status"); v != "" {
			status, err := ledger.ParseAccountStatus(v)
			if err != nil {
				writeLedgerError(w, r, deps.Logger, err)
				return
			}
			filter.Status = &status
		}

		accounts, err := deps.Accounts.ListAccounts(r.Context(), filter)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, views(accounts))
	}
}

func handleGetAccountByID(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, ledger.ErrAccountNotFound)
			return
		}

		account, err := deps.Accounts.GetAccountByID(r.Context(), id)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, account.View())
	}
}

func handleGetAccountByDocument(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := deps.Accounts.GetAccountByDocument(r.Context(), chi.URLParam(r, "document"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, account.View())
	}
}

func handleDeactivateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := deps.Accounts.DeactivateAccount(r.Context(), chi.URLParam(r, "document"), security.ActorFromContext(r.Context()))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, account.View())
	}
}
