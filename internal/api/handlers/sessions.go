package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/memoapp/memo-backend/internal/repository"
	"github.com/memoapp/memo-backend/internal/services"
)

// SessionView is the transport shape of a session with its decoded transcript
type SessionView struct {
	SessionID    string               `json:"sessionId"`
	Owner        string               `json:"owner"`
	StartedAt    time.Time            `json:"startedAt"`
	ClosedAt     *time.Time           `json:"closedAt,omitempty"`
	MessageCount int                  `json:"messageCount"`
	LastTs       time.Time            `json:"lastTs"`
	Messages     []repository.Message `json:"messages"`
}

// ListSessions returns an owner's sessions intersecting a day window
func ListSessions(svc *services.Services) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := c.Params("owner")
		date, err := time.Parse("2006-01-02", c.Query("date"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "date must be YYYY-MM-DD",
			})
		}

		// Window the civil date in the summarize timezone so "sessions for
		// a date" and "summary for a date" cover the same instants.
		start, end := svc.Summarize.DayWindow(date)

		sessions, err := svc.Transcripts.FindByOwnerAndWindow(c.Context(), owner, start, end)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		views := make([]SessionView, 0, len(sessions))
		for _, s := range sessions {
			msgs, err := s.Messages()
			if err != nil {
				continue
			}
			view := SessionView{
				SessionID:    s.SessionID,
				Owner:        s.Owner,
				StartedAt:    s.StartedAt,
				MessageCount: s.MessageCount,
				LastTs:       s.LastTs,
				Messages:     msgs,
			}
			if s.ClosedAt.Valid {
				t := s.ClosedAt.Time
				view.ClosedAt = &t
			}
			views = append(views, view)
		}

		return c.JSON(views)
	}
}
