package middleware

import (
	"strconv"
	"time"

	"fx-blockstream/config"
	"fx-blockstream/internal/core/ports"
	"fx-blockstream/pkg/apperror"
	"fx-blockstream/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Rate limit groups.
const (
	GroupRead  = "read"
	GroupWrite = "write"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitRules returns the per-group limits from configuration.
func RateLimitRules(cfg config.RateLimitConfig) map[string]RateLimitRule {
	return map[string]RateLimitRule{
		GroupRead:  {Limit: cfg.Read, Window: cfg.Window},
		GroupWrite: {Limit: cfg.Write, Window: cfg.Window},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Requests are counted per client IP. A failing limiter lets traffic through.
func RateLimiter(limiter ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP() + ":" + group

		allowed, remaining, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
			response.Error(c, apperror.ErrRateLimitExceeded())
			return
		}

		c.Next()
	}
}
