package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/memoapp/memo-backend/internal/repository"
)

// SummaryStore provides an in-memory implementation of repository.SummaryStore
type SummaryStore struct {
	mutex     sync.RWMutex
	summaries map[string]*repository.DailySummary
	nextID    int64
}

// NewSummaryStore creates a new in-memory summary store
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		summaries: make(map[string]*repository.DailySummary),
	}
}

func summaryKey(owner string, date time.Time) string {
	return owner + "|" + date.Format("2006-01-02")
}

// Upsert inserts or fully replaces the row keyed by (owner, summaryDate)
func (s *SummaryStore) Upsert(_ context.Context, summary *repository.DailySummary) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	dup := *summary
	if len(dup.TokenUsage) == 0 {
		dup.TokenUsage = []byte("{}")
	}

	key := summaryKey(summary.Owner, summary.SummaryDate)
	if existing, ok := s.summaries[key]; ok {
		dup.ID = existing.ID
		dup.CreatedAt = existing.CreatedAt
	} else {
		s.nextID++
		dup.ID = s.nextID
		dup.CreatedAt = now
	}
	dup.UpdatedAt = now

	s.summaries[key] = &dup
	return nil
}

// Exists reports whether a row exists for (owner, date)
func (s *SummaryStore) Exists(_ context.Context, owner string, date time.Time) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, ok := s.summaries[summaryKey(owner, date)]
	return ok, nil
}

// Get returns the summary for (owner, date), or nil when absent
func (s *SummaryStore) Get(_ context.Context, owner string, date time.Time) (*repository.DailySummary, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	summary, ok := s.summaries[summaryKey(owner, date)]
	if !ok {
		return nil, nil
	}
	dup := *summary
	return &dup, nil
}

// ListByOwner returns the owner's most recent summaries, newest first
func (s *SummaryStore) ListByOwner(_ context.Context, owner string, limit int) ([]*repository.DailySummary, error) {
	if limit <= 0 {
		limit = 30
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var result []*repository.DailySummary
	for _, summary := range s.summaries {
		if summary.Owner == owner {
			dup := *summary
			result = append(result, &dup)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SummaryDate.After(result[j].SummaryDate)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
