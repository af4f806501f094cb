// middleware/auth.go
package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the user identity forwarded by the Gateway.
// The websocket endpoint needs both headers; HandleConnection closes sockets
// that arrive without them, so here we just attach whatever is present.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-ID")
		username := c.Get("X-Username")

		if userID == "" {
			log.Printf("⚠️ [USER_CTX] X-User-ID missing on %s — request did not come through gateway?", c.Path())
		}

		// Attach to ctx for handlers
		c.Locals("userID", userID)
		c.Locals("username", username)

		return c.Next()
	}
}
