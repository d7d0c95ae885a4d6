package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: Requests refill evenly over Window and
// up to Burst may be spent at once.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (c RateLimitConfig) limit() rate.Limit {
	return rate.Limit(float64(c.Requests) / c.Window.Seconds())
}

// refill is how long an empty bucket takes to fill up again. A bucket idle
// for longer is indistinguishable from a new one.
func (c RateLimitConfig) refill() time.Duration {
	if c.Requests <= 0 {
		return c.Window
	}
	return time.Duration(float64(c.Window) * float64(c.Burst) / float64(c.Requests))
}

// Profiles used by the router. Each can be overridden with
// RATELIMIT_<NAME>_REQUESTS, RATELIMIT_<NAME>_WINDOW_SEC and
// RATELIMIT_<NAME>_BURST.
var (
	// StrictLimit guards password logins.
	StrictLimit = RateLimitFromEnv("STRICT", RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 5})

	// ModerateLimit guards refresh and logout.
	ModerateLimit = RateLimitFromEnv("MODERATE", RateLimitConfig{Requests: 20, Window: time.Minute, Burst: 20})

	// LenientLimit guards authenticated reads and health probes.
	LenientLimit = RateLimitFromEnv("LENIENT", RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100})

	// PublicLimit guards the JWKS document.
	PublicLimit = RateLimitFromEnv("PUBLIC", RateLimitConfig{Requests: 1000, Window: time.Minute, Burst: 1000})
)

// RateLimitFromEnv returns def with any RATELIMIT_<name>_* overrides
// applied. Values that are not positive integers are ignored.
func RateLimitFromEnv(name string, def RateLimitConfig) RateLimitConfig {
	positive := func(field string) (int, bool) {
		n, err := strconv.Atoi(os.Getenv("RATELIMIT_" + name + "_" + field))
		return n, err == nil && n > 0
	}

	cfg := def
	if n, ok := positive("REQUESTS"); ok {
		cfg.Requests = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

// KeyExtractor names the bucket a request draws from. An empty key
// exempts the request.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor uses the client address, preferring the first
// X-Forwarded-For hop and then X-Real-IP when the service sits behind a
// proxy.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SubjectKeyExtractor uses the authenticated subject, so it only yields a
// key behind Authenticate.
func SubjectKeyExtractor(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return id.Subject
	}
	return ""
}

// JSONFieldKeyExtractor uses a top level string field of a JSON body. The
// body is put back for the handler.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(fields[field], &v) != nil {
			return ""
		}
		return v
	}
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one token bucket per key. Buckets idle for longer than a
// full refill are dropped.
type Limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastPrune time.Time
}

func NewLimiter(cfg RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:       cfg,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
		lastPrune: time.Now(),
	}
}

// Allow takes a token from key's bucket. When none is left it reports how
// long until one is.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	l.prune(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.cfg.limit(), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, l.cfg.Window
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Len is the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// prune must be called with mu held.
func (l *Limiter) prune(now time.Time) {
	idle := l.cfg.refill()
	if now.Sub(l.lastPrune) < idle {
		return
	}
	l.lastPrune = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= idle {
			delete(l.buckets, key)
		}
	}
}

// RateLimitMiddleware rejects requests with 429 once their key's bucket is
// empty.
func RateLimitMiddleware(cfg RateLimitConfig, keyFor KeyExtractor) Middleware {
	limiter := NewLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFor(r)
			if key == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: no key for request, allowing")
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := limiter.Allow(key)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := int(math.Ceil(wait.Seconds()))
			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"endpoint", r.URL.Path,
				"retry_after", retryAfter,
			)

			w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())
			WriteJSON(w, http.StatusTooManyRequests, ErrorResponse{
				Error:       "rate_limit_exceeded",
				Description: "Too many requests. Please try again later.",
			})
		})
	}
}

// RateLimitByIP limits by client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitBySubject limits by authenticated subject and client address.
func RateLimitBySubject(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", SubjectKeyExtractor, IPKeyExtractor))
}

// RateLimitByIPAndJSONField limits by client address plus a body field,
// e.g. the username of a login.
func RateLimitByIPAndJSONField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", IPKeyExtractor, JSONFieldKeyExtractor(field)))
}
