package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/memoapp/memo-backend/internal/api/handlers"
	"github.com/memoapp/memo-backend/internal/api/middleware"
	"github.com/memoapp/memo-backend/internal/services"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *services.Services, jwtSecret string, log *logrus.Logger) {
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "memo-backend",
		})
	})

	// Chat + reads, owner-authenticated when a JWT secret is configured
	protected := api.Group("", middleware.OwnerAuth(jwtSecret))
	protected.Post("/chat", handlers.Chat(svc))
	protected.Get("/sessions/:owner", handlers.ListSessions(svc))
	protected.Get("/summaries/:owner", handlers.ListSummaries(svc))
	protected.Get("/summaries/:owner/:date", handlers.GetSummary(svc))

	// Live connection entry point
	app.Use("/ws/chat", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(handlers.ChatSocket(svc, log)))

	// Ops triggers (expected to sit behind an internal network boundary)
	ops := app.Group("/ops")
	ops.Post("/summarize/daily", handlers.TriggerSummarize(svc))
}
