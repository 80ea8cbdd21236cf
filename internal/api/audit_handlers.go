package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/internet-banking/internal/ledger"
	"github.com/example/internet-banking/internal/security"
	"github.com/example/internet-banking/pkg/audit"
)

type accessTrailResponse struct {
	Verified bool              `json:"verified"`
	Error    string            `json:"error,omitempty"`
	Entries  []*audit.LogEntry `json:"entries"`
}

func listAudit(deps Dependencies, w http.ResponseWriter, r *http.Request, filter ledger.AuditFilter) {
	logs, err := deps.AuditLogs.List(r.Context(), filter)
	if err != nil {
		writeLedgerError(w, r, deps.Logger, err)
		return
	}
	if logs == nil {
		logs = []*ledger.AuditLog{}
	}
	writeJSON(w, r, http.StatusOK, logs)
}

// handleListAudit combines entityType, entityId and actor with AND.
func handleListAudit(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		listAudit(deps, w, r, ledger.AuditFilter{
			EntityType: q.Get("entityType"),
			EntityID:   q.Get("entityId"),
			Actor:      q.Get("actor"),
		})
	}
}

func handleListAuditByEntityType(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listAudit(deps, w, r, ledger.AuditFilter{EntityType: chi.URLParam(r, "entityType")})
	}
}

func handleListAuditByEntityID(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listAudit(deps, w, r, ledger.AuditFilter{EntityID: chi.URLParam(r, "entityId")})
	}
}

// handleAccessTrail exposes the retained access-trail entries and whether they still chain.
func handleAccessTrail(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Auditor == nil {
			security.WriteJSONError(w, r, http.StatusNotFound, "not_found")
			return
		}
		entries := deps.Auditor.Recent()
		resp := accessTrailResponse{Verified: true, Entries: entries}
		if err := audit.VerifyChain(entries); err != nil {
			resp.Verified = false
			resp.Error = err.Error()
		}
		writeJSON(w, r, http.StatusOK, resp)
	}
}
