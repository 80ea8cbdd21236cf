package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/internet-banking/internal/ledger"
	"github.com/example/internet-banking/internal/security"
)

const auditStatusHeader = "X-Audit-Status"

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	cid := security.CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(security.CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeLedgerError maps the ledger taxonomy onto HTTP. Errors outside the taxonomy are logged
// and reported as a bare internal_error.
func writeLedgerError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	var le *ledger.Error
	if !errors.As(err, &le) {
		l.ErrorContext(r.Context(), "request failed",
			"cid", security.CorrelationIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	status := statusForKind(le.Kind)
	if le.Kind == ledger.KindUnavailable {
		l.WarnContext(r.Context(), "storage unavailable",
			"cid", security.CorrelationIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	security.WriteJSONErrorDetail(w, r, status, string(le.Code), le.Detail())
}

func statusForKind(k ledger.Kind) int {
	switch k {
	case ledger.KindValidation, ledger.KindBusinessRule:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindConflict:
		return http.StatusConflict
	case ledger.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
