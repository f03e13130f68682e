package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/memoapp/memo-backend/internal/api/middleware"
	"github.com/memoapp/memo-backend/internal/repository"
	"github.com/memoapp/memo-backend/internal/services"
)

// ChatRequest is the body of POST /api/v1/chat
type ChatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// ChatResponse is the reply envelope for a chat turn
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Chat handles one synchronous chat turn
func Chat(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ChatRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid request body",
			})
		}

		owner := middleware.Owner(c)
		if owner == "" {
			owner = strings.TrimSpace(req.UserID)
		}
		if owner == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "userId is required",
			})
		}

		message := strings.TrimSpace(req.Message)
		if message == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "message is required",
			})
		}

		reply, err := svc.Chat.Handle(c.Context(), owner, message, time.Now())
		if err != nil {
			status := fiber.StatusInternalServerError
			if errors.Is(err, repository.ErrNotFound) {
				status = fiber.StatusNotFound
			} else if errors.Is(err, repository.ErrConflict) {
				status = fiber.StatusConflict
			}
			return c.Status(status).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(ChatResponse{Reply: reply})
	}
}
