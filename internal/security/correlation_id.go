package security

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const CorrelationIDHeader = "X-Correlation-ID"

const maxCorrelationIDLength = 128

type correlationIDKey struct{}

// CorrelationID propagates the caller's X-Correlation-ID, or mints one, and echoes it back.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if cid == "" || len(cid) > maxCorrelationIDLength {
			cid = uuid.NewString()
		}

		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), cid)))
	})
}

func WithCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cid)
}

func CorrelationIDFromContext(ctx context.Context) string {
	if v := ctx.Value(correlationIDKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
