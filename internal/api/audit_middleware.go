package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/example/internet-banking/internal/security"
)

type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// AuditMiddleware appends one access-trail line per request, attributed to the resolved actor.
func AuditMiddleware(a Auditor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)

			cid := security.CorrelationIDFromContext(r.Context())
			actor := security.ActorFromContext(r.Context())
			payload := fmt.Sprintf("cid=%s actor=%q method=%s path=%s status=%d dur_ms=%d",
				cid, actor, r.Method, r.URL.Path, sw.status, dur.Milliseconds())
			a.Append(payload)
		})
	}
}
