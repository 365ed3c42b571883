package auth

import (
	"net"
	"net/http"
	"strings"

	"parley/pkg/logger"
)

// SecConfig carries the perimeter settings resolved at startup.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
}

// publicPath reports whether the path is reachable without an identity
// header: health probes, metrics, docs, and user registration.
func publicPath(r *http.Request) bool {
	switch {
	case r.URL.Path == "/healthz" && r.Method == http.MethodGet:
		return true
	case r.URL.Path == "/metrics" && r.Method == http.MethodGet:
		return true
	case strings.HasPrefix(r.URL.Path, "/docs"):
		return true
	case r.URL.Path == "/v1/users" && r.Method == http.MethodPost:
		return true
	}
	return false
}

// Middleware applies CORS, safe request logging, identity extraction
// and per-caller rate limiting. Unauthenticated requests are rejected
// except on public paths.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,"+HeaderUserID)
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if userID == "" && !publicPath(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				return
			}

			// rate limit per identity, falling back to client IP
			limKey := userID
			if limKey == "" {
				limKey = clientIP(r)
			}
			if !limiters.Allow(limKey) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				logger.Warn("rate_limited", "key", limKey, "path", r.URL.Path)
				return
			}

			if userID != "" {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
