package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/memoapp/memo-backend/internal/repository"
)

// SummaryRepository implements repository.SummaryStore using PostgreSQL
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new PostgreSQL summary repository
func NewSummaryRepository(db *sqlx.DB) repository.SummaryStore {
	return &SummaryRepository{db: db}
}

// Upsert inserts or fully replaces the summary row keyed by (owner, date)
func (r *SummaryRepository) Upsert(ctx context.Context, s *repository.DailySummary) error {
	if len(s.TokenUsage) == 0 {
		s.TokenUsage = []byte("{}")
	}

	query := `
		INSERT INTO daily_summaries
			(owner_id, summary_date, article, article_title, mood_keywords, action_keywords,
			 memory_point, analyze_result, model, token_usage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (owner_id, summary_date)
		DO UPDATE SET
			article = EXCLUDED.article,
			article_title = EXCLUDED.article_title,
			mood_keywords = EXCLUDED.mood_keywords,
			action_keywords = EXCLUDED.action_keywords,
			memory_point = EXCLUDED.memory_point,
			analyze_result = EXCLUDED.analyze_result,
			model = EXCLUDED.model,
			token_usage = EXCLUDED.token_usage,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		s.Owner, s.SummaryDate, s.Article, s.ArticleTitle, s.MoodKeywords,
		s.ActionKeywords, s.MemoryPoint, s.AnalyzeResult, s.Model, s.TokenUsage)
	return err
}

// Exists reports whether a summary row exists for (owner, date)
func (r *SummaryRepository) Exists(ctx context.Context, owner string, date time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM daily_summaries WHERE owner_id = $1 AND summary_date = $2)`

	if err := r.db.GetContext(ctx, &exists, query, owner, date); err != nil {
		return false, err
	}
	return exists, nil
}

// Get retrieves the summary for (owner, date), or nil when absent
func (r *SummaryRepository) Get(ctx context.Context, owner string, date time.Time) (*repository.DailySummary, error) {
	var summary repository.DailySummary
	query := `
		SELECT id, owner_id, summary_date, article, article_title, mood_keywords, action_keywords,
		       memory_point, analyze_result, model, token_usage, created_at, updated_at
		FROM daily_summaries
		WHERE owner_id = $1 AND summary_date = $2
	`

	err := r.db.GetContext(ctx, &summary, query, owner, date)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &summary, nil
}

// ListByOwner returns the owner's most recent summaries, newest first
func (r *SummaryRepository) ListByOwner(ctx context.Context, owner string, limit int) ([]*repository.DailySummary, error) {
	if limit <= 0 {
		limit = 30
	}

	var summaries []*repository.DailySummary
	query := `
		SELECT id, owner_id, summary_date, article, article_title, mood_keywords, action_keywords,
		       memory_point, analyze_result, model, token_usage, created_at, updated_at
		FROM daily_summaries
		WHERE owner_id = $1
		ORDER BY summary_date DESC
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &summaries, query, owner, limit); err != nil {
		return nil, err
	}

	return summaries, nil
}
