package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"staffdesk/internal/transport/http/api"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type RateLimitKeyFunc func(r *http.Request) string

type rateLimitConfig struct {
	keyFn         RateLimitKeyFunc
	mutationsOnly bool
}

type RateLimitOption func(*rateLimitConfig)

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(cfg *rateLimitConfig) {
		if fn != nil {
			cfg.keyFn = fn
		}
	}
}

// MutationsOnly skips GET, HEAD and OPTIONS requests.
func MutationsOnly() RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.mutationsOnly = true
	}
}

// RateLimit throttles requests per key. Limiter failures let the request
// through.
func RateLimit(limiter Limiter, opts ...RateLimitOption) func(http.Handler) http.Handler {
	cfg := rateLimitConfig{keyFn: actorOrIPKey}
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || (cfg.mutationsOnly && !isMutation(r.Method)) {
				next.ServeHTTP(w, r)
				return
			}
			key := cfg.keyFn(r)
			if key == "" {
				key = "ip:" + ClientIP(r)
			}

			decision, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.Warn("rate limit check failed", "key", key, "err", err)
				next.ServeHTTP(w, r)
				return
			}

			resetIn := durationSeconds(decision.ResetIn)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(decision.Remaining, 0)))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))
			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
				slog.Warn("rate limit exceeded", "key", key, "path", r.URL.Path, "method", r.Method, "limit", decision.Limit)
				api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthEmailOrIPKey keys anonymous auth calls by the submitted email.
func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		email := extractJSONField(r, field)
		if email == "" {
			return "ip:" + ClientIP(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID > 0 {
		return "user:" + strconv.FormatInt(user.UserID, 10)
	}
	return "ip:" + ClientIP(r)
}

func isMutation(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	seconds := int(d.Seconds())
	if seconds <= 0 {
		return 1
	}
	return seconds
}

func extractJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(raw) == 0 {
		return ""
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}
