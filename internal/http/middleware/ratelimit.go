package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alsosee/media-gateway/internal/http/render"
)

const (
	visitorTTL    = 10 * time.Minute
	sweepInterval = time.Minute
)

// RateLimiter guarda um token bucket por cliente; buckets ociosos são descartados.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(reqPerSec float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:     rate.Limit(reqPerSec),
		burst:     burst,
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
}

// Allow consome um token do cliente identificado por key.
func (r *RateLimiter) Allow(key string) bool {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.visitors[key] = v
	}
	v.lastSeen = now

	if now.Sub(r.lastSweep) >= sweepInterval {
		for k, other := range r.visitors {
			if now.Sub(other.lastSeen) > visitorTTL {
				delete(r.visitors, k)
			}
		}
		r.lastSweep = now
	}

	return v.limiter.AllowN(now, 1)
}

// retryAfter arredonda para cima o intervalo entre dois tokens, mínimo 1s.
func (r *RateLimiter) retryAfter() string {
	if r.limit <= 0 {
		return "1"
	}
	secs := int(math.Ceil(1 / float64(r.limit)))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// IPRateLimit limita por IP do cliente.
func IPRateLimit(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(realIPFromRequest(r)) {
				w.Header().Set("Retry-After", limiter.retryAfter())
				render.ErrorMessage(w, http.StatusTooManyRequests, "Too Many Requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// realIPFromRequest prefere X-Real-IP (preenchido pelo chi RealIP), depois o primeiro X-Forwarded-For.
func realIPFromRequest(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
