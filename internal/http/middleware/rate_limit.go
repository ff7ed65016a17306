package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Limiter counts hits for a key inside a fixed window.
type Limiter interface {
	Hit(ctx context.Context, key string) (count int64, reset time.Time, err error)
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
}

// RateLimit rejects clients over MaxRequests per window. Limiter errors let
// the request through.
func RateLimit(limiter Limiter, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}

		count, reset, err := limiter.Hit(ctx, c.IP())
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.Error(err))
			return c.Next()
		}

		remaining := int64(config.MaxRequests) - count
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(max(0, remaining), 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(config.MaxRequests) {
			return c.Status(fiber.StatusTooManyRequests).SendString("Rate limit exceeded, try again later.")
		}

		return c.Next()
	}
}
