package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/internet-banking/internal/ledger"
	"github.com/example/internet-banking/internal/security"
)

// transferRequest accepts the amount as a JSON number or a decimal string.
type transferRequest struct {
	FromDocument string          `json:"fromDocument"`
	ToDocument   string          `json:"toDocument"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
}

func results(txns []*ledger.Transaction) []ledger.TransferResult {
	out := make([]ledger.TransferResult, len(txns))
	for i, t := range txns {
		out[i] = t.Result()
	}
	return out
}

func handleTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if err := decodeJSON(r, &req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		res, err := deps.Transfers.Transfer(r.Context(), ledger.TransferRequest{
			FromDocument: req.FromDocument,
			ToDocument:   req.ToDocument,
			Amount:       req.Amount,
			Description:  req.Description,
		}, security.ActorFromContext(r.Context()))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}

		if res.AuditDegraded {
			w.Header().Set(auditStatusHeader, "degraded")
		}
		w.Header().Set("Location", "/transfers/"+res.TransactionID)
		writeJSON(w, r, http.StatusCreated, res)
	}
}

func handleAccountTransactions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		txns, err := deps.Transfers.AccountTransactions(r.Context(), chi.URLParam(r, "document"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, results(txns))
	}
}

func handleAccountTransactionsByID(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, ledger.ErrAccountNotFound)
			return
		}

		txns, err := deps.Transfers.AccountTransactionsByID(r.Context(), id)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, results(txns))
	}
}

func handleGetTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeLedgerError(w, r, deps.Logger, ledger.ErrTransactionNotFound)
			return
		}

		txn, err := deps.Transfers.GetTransaction(r.Context(), id)
		if err != nil {
			writeLedgerError(w, r, deps.Logger, err)
			return
		}
		writeJSON(w, r, http.StatusOK, txn.Result())
	}
}
