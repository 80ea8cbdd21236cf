package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestCorrelationID(t *testing.T) {
	var seen string
	h := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, strings.Repeat("z", 500))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(CorrelationIDHeader))
}

func TestWriteJSONErrorDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithCorrelationID(req.Context(), "cid-1"))
	rec := httptest.NewRecorder()

	WriteJSONErrorDetail(rec, req, http.StatusConflict, "duplicate_document", "already exists")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, ErrorResponse{Error: "duplicate_document", Detail: "already exists", CorrelationID: "cid-1"}, decodeError(t, rec))
}

func TestActor(t *testing.T) {
	var seen string
	h := Actor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ActorFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, DefaultActor, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "  teller-42 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "teller-42", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "teller-42")
	req.TLS = &tls.ConnectionState{VerifiedChains: [][]*x509.Certificate{{
		{Subject: pkix.Name{CommonName: "branch-gateway"}},
	}}}
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "branch-gateway", seen)

	seen = ""
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, strings.Repeat("a", 101))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_actor", decodeError(t, rec).Error)
	assert.Empty(t, seen)
}

func TestMaxBodyBytes(t *testing.T) {
	h := MaxBodyBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("far too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", decodeError(t, rec).Error)
}

func TestIPAllowlist(t *testing.T) {
	allow, err := ParseCIDRAllowlist("10.0.0.0/8, 192.168.1.7 ,")
	require.NoError(t, err)
	require.Len(t, allow, 2)

	h := IPAllowlist(allow)(okHandler)
	for addr, want := range map[string]int{
		"10.1.2.3:5555":    http.StatusNoContent,
		"192.168.1.7:80":   http.StatusNoContent,
		"192.168.1.8:80":   http.StatusForbidden,
		"not-an-address":   http.StatusForbidden,
		"[2001:db8::1]:80": http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, addr)
	}

	_, err = ParseCIDRAllowlist("10.0.0.0/33")
	assert.Error(t, err)
}

func newTestLimiter(t *testing.T, limit int) (*RedisFixedWindow, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RedisFixedWindow{Redis: client, Prefix: "rl", Limit: limit, Window: time.Minute}, mr
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, mr := newTestLimiter(t, 2)
	h := RateLimitMiddleware(limiter, ClientIPKey)(okHandler)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusNoContent, do().Code)

	rec = do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Error)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, do().Code)
	assert.True(t, mr.Exists("rl:ip:10.0.0.1"))
}

func TestRateLimitFailsClosed(t *testing.T) {
	limiter, mr := newTestLimiter(t, 5)
	mr.Close()

	h := RateLimitMiddleware(limiter, ClientIPKey)(okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "rate_limiter_unavailable", decodeError(t, rec).Error)
}

func TestRateLimitDisabled(t *testing.T) {
	d, err := (&RedisFixedWindow{}).Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

const testSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["name"],
  "properties": {"name": {"type": "string", "minLength": 1}}
}`

func TestJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator("test", testSchema)
	require.NoError(t, err)

	var got string
	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, `{"name":"x"}`, got)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeError(t, rec).Error)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "validation_error", body.Error)
	assert.NotEmpty(t, body.Detail)

	_, err = NewJSONSchemaValidator("broken", `{"type": 5}`)
	assert.Error(t, err)
}
