package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// SetupGameRoutes registers the websocket entrypoint and the health probe.
func SetupGameRoutes(app *fiber.App, gateway *GatewayController) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": "pong-session-service"})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/game", websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("userID").(string)
		username, _ := c.Locals("username").(string)
		gateway.HandleConnection(c, userID, username)
	}))
}
