package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memoapp/memo-backend/internal/agent"
	"github.com/memoapp/memo-backend/internal/repository"
)

// SummarizeService condenses each owner's daily transcript into a persisted
// summary. Runs are idempotent for already-summarized owners unless the
// caller names owners explicitly, which forces a recompute.
type SummarizeService struct {
	transcripts repository.TranscriptStore
	summaries   repository.SummaryStore
	agent       agent.Client
	loc         *time.Location
	workers     int
	log         *logrus.Logger
}

// NewSummarizeService creates a new daily summarization service. workers
// bounds the per-owner fan-out.
func NewSummarizeService(
	transcripts repository.TranscriptStore,
	summaries repository.SummaryStore,
	agentClient agent.Client,
	loc *time.Location,
	workers int,
	log *logrus.Logger,
) *SummarizeService {
	if workers <= 0 {
		workers = 4
	}
	return &SummarizeService{
		transcripts: transcripts,
		summaries:   summaries,
		agent:       agentClient,
		loc:         loc,
		workers:     workers,
		log:         log,
	}
}

// RunForDate summarizes one calendar date. With explicitOwners the run is a
// forced override: every named owner is recomputed even when a summary
// already exists. Without them the run enumerates owners active that day and
// skips those already summarized. Per-owner failures are logged, never
// propagated.
func (s *SummarizeService) RunForDate(ctx context.Context, date time.Time, explicitOwners []string) error {
	start, end := s.DayWindow(date)
	override := len(explicitOwners) > 0

	owners := explicitOwners
	if !override {
		var err error
		owners, err = s.transcripts.DistinctOwnersInWindow(ctx, start, end)
		if err != nil {
			return fmt.Errorf("enumerate owners: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"date":     date.Format("2006-01-02"),
		"override": override,
		"owners":   len(owners),
	}).Info("daily summarize run starting")

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, owner := range owners {
		owner := owner
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.summarizeOwner(ctx, owner, date, start, end, override); err != nil {
				s.log.WithFields(logrus.Fields{
					"owner": owner,
					"date":  date.Format("2006-01-02"),
				}).WithError(err).Error("daily summarize failed for owner")
			}
		}()
	}
	wg.Wait()

	return nil
}

// RunForDates summarizes each date in turn, sequentially, to bound load on
// the agent and the storage backend.
func (s *SummarizeService) RunForDates(ctx context.Context, dates []time.Time) error {
	for _, d := range dates {
		if err := s.RunForDate(ctx, d, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *SummarizeService) summarizeOwner(ctx context.Context, owner string, date time.Time, start, end time.Time, override bool) error {
	if !override {
		exists, err := s.summaries.Exists(ctx, owner, civilDate(date))
		if err != nil {
			return fmt.Errorf("check existing summary: %w", err)
		}
		if exists {
			return nil
		}
	}

	sessions, err := s.transcripts.FindByOwnerAndWindow(ctx, owner, start, end)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	if len(sessions) == 0 {
		s.log.WithFields(logrus.Fields{
			"owner": owner,
			"date":  date.Format("2006-01-02"),
		}).Debug("no sessions in window, skipping")
		return nil
	}

	packed := PackTranscript(sessions, s.loc)

	result, err := s.agent.SummarizeDay(ctx, owner, packed)
	if err != nil {
		return fmt.Errorf("agent summarize: %w", err)
	}

	// Never overwrite a prior good summary with a degenerate result.
	if result == nil || strings.TrimSpace(result.Article) == "" {
		s.log.WithFields(logrus.Fields{
			"owner":    owner,
			"date":     date.Format("2006-01-02"),
			"override": override,
		}).Warn("skipping upsert: agent returned empty article")
		return nil
	}

	summary := &repository.DailySummary{
		Owner:          owner,
		SummaryDate:    civilDate(date),
		Article:        result.Article,
		ArticleTitle:   result.ArticleTitle,
		MoodKeywords:   result.MoodKeywords,
		ActionKeywords: result.ActionKeywords,
		MemoryPoint:    result.MemoryPoint,
		AnalyzeResult:  result.AnalyzeResult,
		Model:          result.Model,
		TokenUsage:     result.TokenUsage,
	}
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"owner":    owner,
		"date":     date.Format("2006-01-02"),
		"override": override,
	}).Info("daily summary upserted")
	return nil
}

// DayWindow returns [midnight, next midnight) for the date in the service
// timezone. Readers that slice sessions by calendar date use the same window
// so a day's sessions and its summary cover the same instants.
func (s *SummarizeService) DayWindow(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// civilDate normalizes a date to UTC midnight for use as a DATE key
func civilDate(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PackTranscript renders all messages across the sessions as one
// chronological role-tagged text block. Messages are merged by timestamp,
// not by session. Malformed rows and blank items are skipped so one bad
// record never sinks the day.
func PackTranscript(sessions []*repository.Session, loc *time.Location) string {
	var all []repository.Message
	for _, session := range sessions {
		msgs, err := session.Messages()
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if strings.TrimSpace(m.Content) == "" || m.Ts.IsZero() {
				continue
			}
			all = append(all, m)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Ts.Before(all[j].Ts)
	})

	var sb strings.Builder
	for _, m := range all {
		ts := m.Ts.In(loc)
		fmt.Fprintf(&sb, "[%s] %s: %s\n",
			ts.Format("2006-01-02 15:04:05"), normalizeRole(m.Role), m.Content)
	}
	return sb.String()
}

func normalizeRole(role string) string {
	r := strings.ToLower(role)
	switch {
	case strings.Contains(r, "assistant"):
		return "assistant"
	case strings.Contains(r, "system"):
		return "system"
	default:
		return "user"
	}
}
