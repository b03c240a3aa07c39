package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dataveil/dataveil/internal/config"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// loggingMiddleware logs HTTP requests and responses. Bodies are never
// logged; uploads contain raw PII.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		s.logger.WithRequestID(requestID).Info("HTTP request started",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
		)

		next.ServeHTTP(rw, r)

		s.logger.WithRequestID(requestID).Info("HTTP request completed",
			zap.Int("status_code", rw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int("response_size", rw.size),
		)
	})
}

// rateLimitMiddleware rejects clients exceeding the configured rate.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limiterIdleTTL is how long an idle client keeps its token bucket
// before a sweep reclaims it.
const limiterIdleTTL = 10 * time.Minute

// clientLimiter keeps one token bucket per client IP. Idle buckets are
// swept so the map stays bounded by recently active clients.
type clientLimiter struct {
	config config.RateLimitConfig

	mu        sync.Mutex
	clients   map[string]*clientEntry
	lastSweep time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(cfg config.RateLimitConfig) *clientLimiter {
	return &clientLimiter{
		config:    cfg,
		clients:   make(map[string]*clientEntry),
		lastSweep: time.Now(),
	}
}

// Allow checks whether a request from the given client IP may proceed.
func (c *clientLimiter) Allow(ip string) bool {
	if !c.config.Enabled {
		return true
	}

	now := time.Now()

	c.mu.Lock()
	c.sweepLocked(now)
	entry, ok := c.clients[ip]
	if !ok {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Limit(c.config.RequestsPerSecond), c.config.Burst),
		}
		c.clients[ip] = entry
	}
	entry.lastSeen = now
	c.mu.Unlock()

	return entry.limiter.Allow()
}

// sweepLocked drops buckets idle longer than limiterIdleTTL. Runs at
// most once per TTL; caller holds the mutex.
func (c *clientLimiter) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < limiterIdleTTL {
		return
	}
	for ip, entry := range c.clients {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(c.clients, ip)
		}
	}
	c.lastSweep = now
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// getRequestID extracts the request ID from context
func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}

// responseWriter wraps http.ResponseWriter to capture response data
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}
