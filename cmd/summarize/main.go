// Command summarize runs the daily summarization batch on demand, outside
// the server's cron schedule.
//
//	summarize -date 2025-10-10                  idempotent batch for one date
//	summarize -date 2025-10-10 -owners u1,u2    forced override for named owners
//	summarize -dates 2025-10-08,2025-10-09      sequential batch over dates
package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/memoapp/memo-backend/internal/agent"
	"github.com/memoapp/memo-backend/internal/config"
	"github.com/memoapp/memo-backend/internal/database"
	"github.com/memoapp/memo-backend/internal/repository/postgres"
	"github.com/memoapp/memo-backend/internal/services"
)

func main() {
	var (
		dateFlag   = flag.String("date", "", "date to summarize (YYYY-MM-DD)")
		datesFlag  = flag.String("dates", "", "comma-separated dates to summarize sequentially")
		ownersFlag = flag.String("owners", "", "comma-separated owners to force-recompute (requires -date)")
	)
	flag.Parse()

	godotenv.Load()

	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	transcripts := postgres.NewTranscriptRepository(db.DB)
	summaries := postgres.NewSummaryRepository(db.DB)

	agentClient := agent.NewRemoteClient(cfg.Agent.WSURL, cfg.Agent.SummaryURL, log)

	svc, err := services.NewServices(cfg, transcripts, summaries, agentClient, log)
	if err != nil {
		log.WithError(err).Fatal("failed to wire services")
	}

	ctx := context.Background()

	if *datesFlag != "" {
		dates, err := parseDates(*datesFlag)
		if err != nil {
			log.WithError(err).Fatal("invalid -dates")
		}
		if err := svc.Summarize.RunForDates(ctx, dates); err != nil {
			log.WithError(err).Fatal("batch run failed")
		}
		return
	}

	if *dateFlag == "" {
		log.Fatal("one of -date or -dates is required")
	}
	date, err := time.Parse("2006-01-02", *dateFlag)
	if err != nil {
		log.WithError(err).Fatal("invalid -date")
	}

	var owners []string
	if *ownersFlag != "" {
		for _, o := range strings.Split(*ownersFlag, ",") {
			if o = strings.TrimSpace(o); o != "" {
				owners = append(owners, o)
			}
		}
	}

	if err := svc.Summarize.RunForDate(ctx, date, owners); err != nil {
		log.WithError(err).Fatal("run failed")
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
