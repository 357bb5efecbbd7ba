package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Handlers that set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if existing := string(c.Response().Header.Peek(fiber.HeaderCacheControl)); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		// Session-bound data must never be shared.
		case strings.HasPrefix(path, "/v1/auth"),
			strings.HasPrefix(path, "/v1/me"),
			strings.HasPrefix(path, "/v1/officer"),
			strings.HasPrefix(path, "/v1/admin"),
			strings.HasPrefix(path, "/v1/ws"):
			ttl = "private, no-store"

		case strings.HasPrefix(path, "/v1/issues/"):
			ttl = "public, max-age=30"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "no-cache"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
