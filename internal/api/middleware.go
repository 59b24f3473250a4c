package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/Aman-CERP/amanlex/internal/cache"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/telemetry"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID reuses the caller's request id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					slog.String("error", fmt.Sprint(r)),
					slog.String("path", c.Request.URL.Path),
					slog.String("request_id", c.GetString(requestIDKey)),
					slog.String("stack", string(debug.Stack())))
				writeError(c, amanerrors.InternalError("internal server error", nil))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// AccessLog logs one record per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("client", c.ClientIP()),
			slog.String("request_id", c.GetString(requestIDKey)),
		}
		if last := c.Errors.Last(); last != nil {
			attrs = append(attrs, slog.Any("error", last.Err))
		}
		logger.LogAttrs(c.Request.Context(), level, "request", attrs...)
	}
}

// Metrics records request counts and latency by route template.
func Metrics(collectors *telemetry.Collectors) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		collectors.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// CORS allows the configured origins. An empty list allows any origin.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// RateLimiter decides whether a client may make another request.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// ClientLimiter is a token bucket per client key. Buckets of idle clients
// expire from a bounded cache.
type ClientLimiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.TTL[string, *rate.Limiter]
}

// NewClientLimiter allows rps requests per second with the given burst
// for each client.
func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	return &ClientLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		buckets: cache.NewTTL[string, *rate.Limiter](10000, 10*time.Minute),
	}
}

// Allow takes one token from key's bucket.
func (l *ClientLimiter) Allow(_ context.Context, key string) bool {
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Set(key, lim)
	}
	return lim.Allow()
}

// RateLimit rejects requests over the limit with 429. A nil limiter
// disables limiting.
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limiter.Allow(c.Request.Context(), c.ClientIP()) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Code:      "ERR_429_RATE_LIMITED",
			Message:   "rate limit exceeded",
			RequestID: c.GetString(requestIDKey),
		})
	}
}
