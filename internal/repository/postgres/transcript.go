package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/memoapp/memo-backend/internal/repository"
)

// TranscriptRepository implements repository.TranscriptStore using PostgreSQL.
// The transcript lives in a jsonb array on the session row; appends go
// through a version-guarded conditional update.
type TranscriptRepository struct {
	db *sqlx.DB
}

// NewTranscriptRepository creates a new PostgreSQL transcript repository
func NewTranscriptRepository(db *sqlx.DB) repository.TranscriptStore {
	return &TranscriptRepository{db: db}
}

// CreateSession allocates a fresh session for owner
func (r *TranscriptRepository) CreateSession(ctx context.Context, owner string, now time.Time) (*repository.Session, error) {
	session := &repository.Session{
		Owner:     owner,
		SessionID: uuid.New().String(),
		StartedAt: now,
		LastTs:    now,
		Msgs:      []byte("[]"),
	}

	query := `
		INSERT INTO chat_sessions (owner_id, session_id, started_at, message_count, last_ts, version, msgs)
		VALUES ($1, $2, $3, 0, $4, 0, $5)
		RETURNING id
	`

	if err := r.db.QueryRowxContext(ctx, query, session.Owner, session.SessionID,
		session.StartedAt, session.LastTs, session.Msgs).Scan(&session.ID); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return session, nil
}

// GetSession retrieves a session by its session id
func (r *TranscriptRepository) GetSession(ctx context.Context, sessionID string) (*repository.Session, error) {
	var session repository.Session
	query := `
		SELECT id, owner_id, session_id, started_at, closed_at, message_count, last_ts, version, msgs
		FROM chat_sessions
		WHERE session_id = $1
	`

	err := r.db.GetContext(ctx, &session, query, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &session, nil
}

// AppendMessage appends one message to the session transcript. The update is
// conditioned on the version observed at read time; a lost race is re-read
// and retried exactly once before giving up with ErrConflict.
func (r *TranscriptRepository) AppendMessage(ctx context.Context, sessionID, role, content string, ts time.Time) error {
	session, err := r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	ok, err := r.tryAppend(ctx, session, role, content, ts)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	// Lost the optimistic race: refresh and retry once.
	session, err = r.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	ok, err = r.tryAppend(ctx, session, role, content, ts)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s version %d: %w", sessionID, session.Version, repository.ErrConflict)
	}
	return nil
}

// tryAppend performs a single version-guarded conditional append. Returns
// false when zero rows were affected.
func (r *TranscriptRepository) tryAppend(ctx context.Context, session *repository.Session, role, content string, ts time.Time) (bool, error) {
	item, err := json.Marshal(repository.Message{
		Seq:     session.MessageCount + 1,
		Ts:      ts,
		Role:    role,
		Content: content,
	})
	if err != nil {
		return false, fmt.Errorf("serialize message: %w", err)
	}

	query := `
		UPDATE chat_sessions
		SET msgs = COALESCE(msgs, '[]'::jsonb) || $1::jsonb,
		    message_count = message_count + 1,
		    last_ts = $2,
		    version = version + 1
		WHERE session_id = $3 AND version = $4
	`

	result, err := r.db.ExecContext(ctx, query, item, ts, session.SessionID, session.Version)
	if err != nil {
		return false, fmt.Errorf("append message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// CloseSession stamps closedAt. Last-writer-wins is acceptable for a
// terminal marker, so no version guard here.
func (r *TranscriptRepository) CloseSession(ctx context.Context, sessionID string, now time.Time) error {
	query := `
		UPDATE chat_sessions
		SET closed_at = $1
		WHERE session_id = $2 AND closed_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, now, sessionID)
	return err
}

// FindByOwnerAndWindow returns the owner's sessions whose activity interval
// intersects [start, end), ordered by startedAt
func (r *TranscriptRepository) FindByOwnerAndWindow(ctx context.Context, owner string, start, end time.Time) ([]*repository.Session, error) {
	var sessions []*repository.Session
	query := `
		SELECT id, owner_id, session_id, started_at, closed_at, message_count, last_ts, version, msgs
		FROM chat_sessions
		WHERE owner_id = $1 AND started_at < $2 AND last_ts >= $3
		ORDER BY started_at ASC
	`

	if err := r.db.SelectContext(ctx, &sessions, query, owner, end, start); err != nil {
		return nil, err
	}

	return sessions, nil
}

// DistinctOwnersInWindow enumerates owners with session activity in [start, end)
func (r *TranscriptRepository) DistinctOwnersInWindow(ctx context.Context, start, end time.Time) ([]string, error) {
	var owners []string
	query := `
		SELECT DISTINCT owner_id
		FROM chat_sessions
		WHERE started_at < $1 AND last_ts >= $2
	`

	if err := r.db.SelectContext(ctx, &owners, query, end, start); err != nil {
		return nil, err
	}

	return owners, nil
}

// RecentUserMessages returns the owner's user-role messages from its most
// recent sessions, oldest first. Unparseable transcript rows are skipped.
func (r *TranscriptRepository) RecentUserMessages(ctx context.Context, owner string, limit int) ([]repository.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	var sessions []*repository.Session
	query := `
		SELECT id, owner_id, session_id, started_at, closed_at, message_count, last_ts, version, msgs
		FROM chat_sessions
		WHERE owner_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &sessions, query, owner, limit); err != nil {
		return nil, err
	}

	// Sessions came newest-first; walk them oldest-first so the combined
	// list reads chronologically without disturbing within-session order.
	var result []repository.Message
	for i := len(sessions) - 1; i >= 0; i-- {
		msgs, err := sessions[i].Messages()
		if err != nil {
			continue
		}
		for _, m := range msgs {
			if m.Role == "user" {
				result = append(result, m)
			}
		}
	}

	return result, nil
}
