package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"payment-orchestrator/internal/apperr"
)

const (
	HeaderRequestID = "X-Request-ID"
	ctxKeyRequestID = "request_id"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

// Logger writes one access line per request; 4xx log at warn, 5xx at error.
func Logger(l *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		c.Next()

		status := c.Writer.Status()
		kv := []any{
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start).String(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			l.Errorw("http_request", kv...)
		case status >= 400:
			l.Warnw("http_request", kv...)
		default:
			l.Infow("http_request", kv...)
		}
	}
}

func Recovery(l *zap.SugaredLogger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		l.Errorw("panic_recovered",
			"request_id", GetRequestID(c),
			"panic", recovered,
			"stack", string(debug.Stack()),
		)
		fail(c, apperr.Wrap(fmt.Errorf("panic: %v", recovered)))
	})
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (l *ipLimiter) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		if len(l.visitors) >= 10000 {
			for k, old := range l.visitors {
				if now.Sub(old.lastSeen) > l.idle {
					delete(l.visitors, k)
				}
			}
		}
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// RateLimit rejects clients above perSecond requests; zero disables it.
func RateLimit(perSecond float64) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	limiter := newIPLimiter(perSecond, burst)
	return func(c *gin.Context) {
		if !limiter.get(c.ClientIP(), time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, envelope{
				Type:    typeDanger,
				Title:   "Too many requests",
				Message: "Slow down and retry shortly.",
			})
			return
		}
		c.Next()
	}
}
