package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const msgRateLimited = "Too many requests from this IP, please try again later."

type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	// MaxClients bounds the number of tracked addresses.
	MaxClients int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Window:      15 * time.Minute,
		MaxRequests: 100,
		MaxClients:  10000,
	}
}

type rateWindow struct {
	start time.Time
	count int
}

// RateLimiter counts requests per client IP in fixed windows.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	windows *expirable.LRU[string, *rateWindow]
	now     func() time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	return &RateLimiter{
		cfg:     cfg,
		windows: expirable.NewLRU[string, *rateWindow](cfg.MaxClients, nil, cfg.Window),
		now:     time.Now,
	}
}

// Allow records one request from key and reports whether it fits the
// window, how many requests remain and when the window resets.
func (l *RateLimiter) Allow(key string) (ok bool, remaining int, reset time.Time) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	w, found := l.windows.Get(key)
	if !found || now.Sub(w.start) >= l.cfg.Window {
		w = &rateWindow{start: now}
		l.windows.Add(key, w)
	}
	w.count++
	reset = w.start.Add(l.cfg.Window)
	remaining = l.cfg.MaxRequests - w.count
	if remaining < 0 {
		remaining = 0
	}
	return w.count <= l.cfg.MaxRequests, remaining, reset
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, reset := l.Allow(clientIP(r))
		secs := int(reset.Sub(l.now()).Round(time.Second) / time.Second)
		if secs < 0 {
			secs = 0
		}
		w.Header().Set("RateLimit-Limit", strconv.Itoa(l.cfg.MaxRequests))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(secs))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeFailure(w, http.StatusTooManyRequests, msgRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
