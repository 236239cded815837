package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rl-arena/trivia-backend/pkg/metrics"
	"github.com/rl-arena/trivia-backend/pkg/ratelimit"
)

// RateLimit admits the command for the authenticated user before the
// handler runs, and records it only when the handler succeeded (status < 400).
// Must run after Auth.
func RateLimit(limiter *ratelimit.RateLimiter, command ratelimit.Command, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required for rate limiting",
			})
			c.Abort()
			return
		}

		privileged := IsPrivileged(c)
		decision := limiter.Admit(userID, command, privileged)
		if m != nil {
			m.AdmissionDecisions.
				WithLabelValues(string(command), decision.Class, strconv.FormatBool(decision.Allowed)).
				Inc()
		}

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     decision.Err().Error(),
				"class":       decision.Class,
				"retry_after": decision.RetryAfter,
			})
			c.Abort()
			return
		}

		c.Next()

		// 성공한 요청만 기록 (운영자는 기록 불필요)
		if !privileged && c.Writer.Status() < http.StatusBadRequest {
			limiter.Record(userID, command)
		}
	}
}
