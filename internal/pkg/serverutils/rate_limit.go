package serverutils

import (
	"strconv"

	"slingshot-be/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimitMiddleware limits requests per user, or per client IP when anonymous.
// Limiter errors fail open.
func RateLimitMiddleware(l ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := UserID(c)
		if key == "" {
			key = c.IP()
		}
		d, err := l.Allow(c.UserContext(), key)
		if err != nil {
			return c.Next()
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(d.RetryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			return ErrRateLimited
		}
		return c.Next()
	}
}
