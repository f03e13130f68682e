package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced session does not exist
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when an optimistic append lost the race twice
	ErrConflict = errors.New("append conflict: retry exhausted")
)

// Message is one entry in a session's transcript. Seq is 1-based and
// contiguous within the session.
type Message struct {
	Seq     int       `json:"seq"`
	Ts      time.Time `json:"ts"`
	Role    string    `json:"role"`
	Content string    `json:"content"`
}

// Session is one conversation instance holding an ordered message log.
// Version increments exactly once per successful append and guards the
// conditional update in AppendMessage.
type Session struct {
	ID           int64        `db:"id"`
	Owner        string       `db:"owner_id"`
	SessionID    string       `db:"session_id"`
	StartedAt    time.Time    `db:"started_at"`
	ClosedAt     sql.NullTime `db:"closed_at"`
	MessageCount int          `db:"message_count"`
	LastTs       time.Time    `db:"last_ts"`
	Version      int64        `db:"version"`
	Msgs         []byte       `db:"msgs"`
}

// Messages decodes the stored transcript. A nil or empty msgs column
// decodes to an empty slice.
func (s *Session) Messages() ([]Message, error) {
	if len(s.Msgs) == 0 {
		return nil, nil
	}
	var msgs []Message
	if err := json.Unmarshal(s.Msgs, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DailySummary is the condensed article for one owner on one calendar date.
// At most one row exists per (owner, date).
type DailySummary struct {
	ID             int64           `db:"id" json:"id"`
	Owner          string          `db:"owner_id" json:"owner"`
	SummaryDate    time.Time       `db:"summary_date" json:"summaryDate"`
	Article        string          `db:"article" json:"article"`
	ArticleTitle   string          `db:"article_title" json:"articleTitle"`
	MoodKeywords   string          `db:"mood_keywords" json:"moodKeywords"`
	ActionKeywords string          `db:"action_keywords" json:"actionKeywords"`
	MemoryPoint    string          `db:"memory_point" json:"memoryPoint"`
	AnalyzeResult  string          `db:"analyze_result" json:"analyzeResult"`
	Model          string          `db:"model" json:"model"`
	TokenUsage     json.RawMessage `db:"token_usage" json:"tokenUsage,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// TranscriptStore defines transcript session storage operations
type TranscriptStore interface {
	// CreateSession allocates a fresh session for owner with version=0 and
	// an empty transcript.
	CreateSession(ctx context.Context, owner string, now time.Time) (*Session, error)
	// AppendMessage appends one message under optimistic version control.
	// A lost race is retried exactly once; a second loss returns ErrConflict.
	AppendMessage(ctx context.Context, sessionID, role, content string, ts time.Time) error
	// CloseSession stamps closedAt if not already set. Idempotent.
	CloseSession(ctx context.Context, sessionID string, now time.Time) error
	// GetSession returns the session or ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// FindByOwnerAndWindow returns sessions whose activity intersects
	// [start, end), ordered by startedAt.
	FindByOwnerAndWindow(ctx context.Context, owner string, start, end time.Time) ([]*Session, error)
	// DistinctOwnersInWindow enumerates owners with activity in [start, end).
	DistinctOwnersInWindow(ctx context.Context, start, end time.Time) ([]string, error)
	// RecentUserMessages returns the owner's user-role messages from its most
	// recent sessions, oldest first.
	RecentUserMessages(ctx context.Context, owner string, limit int) ([]Message, error)
}

// SummaryStore defines daily summary storage operations
type SummaryStore interface {
	// Upsert replaces the full content row keyed by (owner, summaryDate).
	Upsert(ctx context.Context, s *DailySummary) error
	// Exists reports whether a summary row exists for (owner, date).
	Exists(ctx context.Context, owner string, date time.Time) (bool, error)
	// Get returns the summary for (owner, date), or nil when absent.
	Get(ctx context.Context, owner string, date time.Time) (*DailySummary, error)
	// ListByOwner returns the owner's most recent summaries, newest first.
	ListByOwner(ctx context.Context, owner string, limit int) ([]*DailySummary, error)
}
