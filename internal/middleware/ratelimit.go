package middleware

import (
	"time"

	"securecart/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit allows max requests per window per caller. Authenticated callers
// are keyed by user, anonymous ones by IP. storage may be nil for in-memory
// counters.
func RateLimit(name string, max int, window time.Duration, storage fiber.Storage) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			if claims, err := utils.GetUserClaims(c); err == nil {
				return name + ":user:" + claims.UserID
			}
			return name + ":ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.Error(c, fiber.StatusTooManyRequests, "Too many requests. Please try again later.")
		},
	})
}
