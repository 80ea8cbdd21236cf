package security

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error the HTTP surface returns.
type ErrorResponse struct {
	Error         string `json:"error"`
	Detail        string `json:"detail,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, code string) {
	WriteJSONErrorDetail(w, r, status, code, "")
}

// WriteJSONErrorDetail writes the error envelope with a human-readable detail message.
func WriteJSONErrorDetail(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	cid := CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(CorrelationIDHeader, cid)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:         code,
		Detail:        detail,
		CorrelationID: cid,
	})
}
