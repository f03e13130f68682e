// Package scheduler triggers the daily summarization run. The job fires
// shortly after midnight and summarizes the previous day, so the day's
// writes have settled before they are condensed.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/memoapp/memo-backend/internal/services"
)

// runBudget bounds one scheduled run end to end
const runBudget = 2 * time.Hour

// Scheduler owns the cron loop for the daily summarize job
type Scheduler struct {
	cron *cron.Cron
	log  *logrus.Logger
}

// New creates a scheduler that runs svc for yesterday on the given cron
// spec, evaluated in loc.
func New(svc *services.SummarizeService, spec string, loc *time.Location, log *logrus.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(loc))

	_, err := c.AddFunc(spec, func() {
		yesterday := time.Now().In(loc).AddDate(0, 0, -1)
		log.WithField("date", yesterday.Format("2006-01-02")).Info("scheduled daily summarize starting")

		ctx, cancel := context.WithTimeout(context.Background(), runBudget)
		defer cancel()

		if err := svc.RunForDate(ctx, yesterday, nil); err != nil {
			log.WithError(err).Error("scheduled daily summarize failed")
		}
	})
	if err != nil {
		return nil, err
	}

	return &Scheduler{cron: c, log: log}, nil
}

// Start begins the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
