package security

import (
	"context"
	"crypto/x509"
	"errors"
	"net/http"
	"strings"
	"unicode"
)

const (
	ActorHeader = "X-Actor"

	// DefaultActor is attributed when the caller does not identify itself.
	DefaultActor = "SYSTEM"

	maxActorLength = 100
)

type actorKey struct{}

// ErrInvalidActor is returned for actor headers that are too long or contain control characters.
var ErrInvalidActor = errors.New("actor must be at most 100 printable characters")

// ResolveActor decides who is responsible for a request. A verified client certificate wins
// over the header; with neither the request is attributed to DefaultActor.
func ResolveActor(verifiedChains [][]*x509.Certificate, header string) (string, error) {
	if len(verifiedChains) > 0 && len(verifiedChains[0]) > 0 {
		if cn, err := CertificateActor(verifiedChains[0][0]); err == nil {
			return cn, nil
		}
	}
	raw := strings.TrimSpace(header)
	if raw == "" {
		return DefaultActor, nil
	}
	if !validActor(raw) {
		return "", ErrInvalidActor
	}
	return raw, nil
}

// Actor stores the resolved actor in the request context. Invalid X-Actor values are
// rejected with 400.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var chains [][]*x509.Certificate
		if r.TLS != nil {
			chains = r.TLS.VerifiedChains
		}
		actor, err := ResolveActor(chains, r.Header.Get(ActorHeader))
		if err != nil {
			WriteJSONErrorDetail(w, r, http.StatusBadRequest, "invalid_actor", err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the resolved actor, or DefaultActor outside the middleware.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultActor
}

func validActor(s string) bool {
	if len([]rune(s)) > maxActorLength {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
