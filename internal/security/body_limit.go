package security

import "net/http"

// MaxBodyBytes caps request bodies; reads past the limit fail with *http.MaxBytesError.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				if r.ContentLength > limit {
					WriteJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large")
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
