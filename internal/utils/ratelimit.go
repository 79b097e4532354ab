package utils

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit enforces a per-client-IP token bucket. rps <= 0 disables it.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = 1
	}

	var (
		mu      sync.Mutex
		clients = map[string]*clientLimiter{}
		sweep   = time.Now()
	)
	get := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		now := time.Now()
		if now.Sub(sweep) > 5*time.Minute {
			for k, c := range clients {
				if now.Sub(c.lastSeen) > 10*time.Minute {
					delete(clients, k)
				}
			}
			sweep = now
		}
		c, ok := clients[ip]
		if !ok {
			c = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[ip] = c
		}
		c.lastSeen = now
		return c.limiter
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := get(clientIP(r)).Reserve()
			if d := res.Delay(); !res.OK() || d > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds())+1))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
