package security

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFixedWindow counts requests per key in fixed windows shared by every gateway replica.
type RedisFixedWindow struct {
	Redis  *redis.Client
	Prefix string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

func (l *RedisFixedWindow) key(raw string) string {
	if l.Prefix == "" {
		return raw
	}
	return l.Prefix + ":" + raw
}

// Allow counts one request against rawKey. A nil client or a non-positive limit disables
// limiting.
func (l *RedisFixedWindow) Allow(ctx context.Context, rawKey string) (Decision, error) {
	if l.Redis == nil || l.Limit <= 0 || l.Window <= 0 {
		return Decision{Allowed: true, Remaining: l.Limit}, nil
	}

	key := l.key(rawKey)
	var incr *redis.IntCmd
	var pttl *redis.DurationCmd
	_, err := l.Redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		pttl = p.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count request: %w", err)
	}

	count := incr.Val()
	resetIn := pttl.Val()
	if resetIn < 0 {
		if err := l.Redis.PExpire(ctx, key, l.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to start rate window: %w", err)
		}
		resetIn = l.Window
	}

	remaining := l.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(l.Limit),
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}

// RateLimitMiddleware rejects requests over the limit with 429 and fails closed with 503 when
// Redis cannot be reached. Requests for which keyFn returns "" are not limited.
func RateLimitMiddleware(l *RedisFixedWindow, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if keyFn != nil {
				key = keyFn(r)
			}
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			d, err := l.Allow(r.Context(), key)
			if err != nil {
				WriteJSONError(w, r, http.StatusServiceUnavailable, "rate_limiter_unavailable")
				return
			}

			resetSeconds := int((d.ResetIn + time.Second - 1) / time.Second)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSeconds))
			if !d.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(resetSeconds))
				WriteJSONError(w, r, http.StatusTooManyRequests, "rate_limited")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIPKey keys the limiter by the remote address.
func ClientIPKey(r *http.Request) string {
	if ip := ClientIP(r); ip != nil {
		return "ip:" + ip.String()
	}
	return ""
}
