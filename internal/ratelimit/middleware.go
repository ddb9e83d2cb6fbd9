package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ganelltubbs501/podcast-insight-dashboard-sub002/internal/metrics"
)

// Middleware limits requests for the given class. The caller identity is
// the client IP, or the API key when the request carries one, so NATed
// users behind one address do not share a bucket once authenticated.
func (l *Limiter) Middleware(class Class) gin.HandlerFunc {
	rule := l.rules.For(class)
	if rule.CountFailuresOnly {
		return l.failuresOnlyMiddleware(class)
	}

	return func(c *gin.Context) {
		d := l.Allow(c.Request.Context(), identity(c), class)
		if !d.Allowed {
			reject(c, class, d.RetryAfter)
			return
		}
		c.Next()
	}
}

// failuresOnlyMiddleware rejects callers already over the ceiling, runs
// the handler, and counts the attempt only when it failed. Successful
// logins never consume budget.
func (l *Limiter) failuresOnlyMiddleware(class Class) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identity(c)

		d := l.Check(c.Request.Context(), id, class)
		if !d.Allowed {
			reject(c, class, d.RetryAfter)
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			l.RecordFailure(c.Request.Context(), id, class)
		}
	}
}

func identity(c *gin.Context) string {
	if key := c.GetHeader("Authorization"); key != "" {
		if len(key) > 24 {
			key = key[:24]
		}
		return "key:" + key
	}
	return "ip:" + c.ClientIP()
}

func reject(c *gin.Context, class Class, retryAfter time.Duration) {
	metrics.RateLimitBreachesTotal.WithLabelValues(string(class)).Inc()

	seconds := int(retryAfter.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":      "rate_limit_exceeded",
		"retryAfter": seconds,
	})
	c.Abort()
}
