package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	// Requests allowed per Window, per client.
	Requests int
	// Window is the fixed counting window.
	Window time.Duration
	// CleanupInterval controls how often idle client entries are evicted.
	// Defaults to Window when zero.
	CleanupInterval time.Duration
}

type rateWindow struct {
	count int
	reset time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rateWindow

	requests int
	window   time.Duration
	now      func() time.Time
}

// allow records a hit for key and reports whether it fits the current
// window, plus the remaining budget and the window reset time.
func (rl *rateLimiter) allow(key string) (ok bool, remaining int, reset time.Time) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	win := rl.clients[key]
	if win == nil || now.After(win.reset) {
		win = &rateWindow{reset: now.Add(rl.window)}
		rl.clients[key] = win
	}
	if win.count >= rl.requests {
		return false, 0, win.reset
	}
	win.count++
	return true, rl.requests - win.count, win.reset
}

func (rl *rateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, win := range rl.clients {
		if now.After(win.reset) {
			delete(rl.clients, key)
		}
	}
}

// RateLimit returns a fixed-window per-client-IP limiter. Exceeding the
// budget yields 429 with a JSON body and a Retry-After header. A cleanup
// goroutine evicts expired entries until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) func(http.Handler) http.Handler {
	rl := &rateLimiter{
		clients:  make(map[string]*rateWindow),
		requests: cfg.Requests,
		window:   cfg.Window,
		now:      time.Now,
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = cfg.Window
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup()
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining, reset := rl.allow(clientIP(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(reset).Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"code":"RATE_LIMITED","message":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resolves the caller address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
