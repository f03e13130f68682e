package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/memoapp/memo-backend/internal/services"
)

// TriggerSummarize manually runs the daily summarization.
//
//	POST /ops/summarize/daily?date=2025-10-10              idempotent batch
//	POST /ops/summarize/daily?date=...&owners=u1,u2        forced override
//	POST /ops/summarize/daily?dates=d1,d2,...              sequential batch
func TriggerSummarize(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if datesParam := c.Query("dates"); datesParam != "" {
			dates, err := parseDates(datesParam)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			if err := svc.Summarize.RunForDates(c.Context(), dates); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": err.Error(),
				})
			}
			return c.JSON(fiber.Map{"status": "ok", "mode": "batch-dates", "dates": len(dates)})
		}

		date, err := time.Parse("2006-01-02", c.Query("date"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "date must be YYYY-MM-DD",
			})
		}

		var owners []string
		if ownersParam := c.Query("owners"); ownersParam != "" {
			for _, o := range strings.Split(ownersParam, ",") {
				if o = strings.TrimSpace(o); o != "" {
					owners = append(owners, o)
				}
			}
		}

		if err := svc.Summarize.RunForDate(c.Context(), date, owners); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		mode := "batch-all"
		if len(owners) > 0 {
			mode = "batch-manual"
		}
		return c.JSON(fiber.Map{"status": "ok", "mode": mode, "date": date.Format("2006-01-02")})
	}
}

func parseDates(param string) ([]time.Time, error) {
	var dates []time.Time
	for _, raw := range strings.Split(param, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}
