package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/memoapp/memo-backend/internal/services"
)

// GetSummary returns the daily summary for an owner and date
func GetSummary(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := c.Params("owner")
		date, err := time.Parse("2006-01-02", c.Params("date"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "date must be YYYY-MM-DD",
			})
		}

		summary, err := svc.Summaries.Get(c.Context(), owner, date)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if summary == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "summary not found",
			})
		}

		return c.JSON(summary)
	}
}

// ListSummaries returns an owner's recent daily summaries, newest first
func ListSummaries(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := c.Params("owner")
		limit := c.QueryInt("limit", 30)

		summaries, err := svc.Summaries.ListByOwner(c.Context(), owner, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(summaries)
	}
}
