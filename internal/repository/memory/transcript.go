package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memoapp/memo-backend/internal/repository"
)

// TranscriptStore provides an in-memory implementation of
// repository.TranscriptStore. It mirrors the observe-then-conditional-apply
// structure of the PostgreSQL repository, including the single retry, so
// service tests exercise the same append protocol.
type TranscriptStore struct {
	mutex    sync.Mutex
	sessions map[string]*repository.Session
	nextID   int64

	// AppendGate, when set, runs between the version read and the
	// conditional apply of each attempt. Tests use it to force a lost race.
	AppendGate func(attempt int)
}

// NewTranscriptStore creates a new in-memory transcript store
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		sessions: make(map[string]*repository.Session),
	}
}

// CreateSession allocates a fresh session for owner
func (s *TranscriptStore) CreateSession(_ context.Context, owner string, now time.Time) (*repository.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.nextID++
	session := &repository.Session{
		ID:        s.nextID,
		Owner:     owner,
		SessionID: uuid.New().String(),
		StartedAt: now,
		LastTs:    now,
		Msgs:      []byte("[]"),
	}
	s.sessions[session.SessionID] = session

	return copySession(session), nil
}

// GetSession returns the session or repository.ErrNotFound
func (s *TranscriptStore) GetSession(_ context.Context, sessionID string) (*repository.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(session), nil
}

// AppendMessage appends one message under optimistic version control with a
// single retry, matching the SQL repository's protocol.
func (s *TranscriptStore) AppendMessage(ctx context.Context, sessionID, role, content string, ts time.Time) error {
	snapshot, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	ok, err := s.tryAppend(snapshot, role, content, ts, 1)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	snapshot, err = s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	ok, err = s.tryAppend(snapshot, role, content, ts, 2)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s version %d: %w", sessionID, snapshot.Version, repository.ErrConflict)
	}
	return nil
}

func (s *TranscriptStore) tryAppend(snapshot *repository.Session, role, content string, ts time.Time, attempt int) (bool, error) {
	item := repository.Message{
		Seq:     snapshot.MessageCount + 1,
		Ts:      ts,
		Role:    role,
		Content: content,
	}

	if s.AppendGate != nil {
		s.AppendGate(attempt)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, ok := s.sessions[snapshot.SessionID]
	if !ok {
		return false, repository.ErrNotFound
	}
	if session.Version != snapshot.Version {
		return false, nil
	}

	msgs, err := session.Messages()
	if err != nil {
		return false, err
	}
	msgs = append(msgs, item)
	raw, err := json.Marshal(msgs)
	if err != nil {
		return false, err
	}

	session.Msgs = raw
	session.MessageCount++
	session.LastTs = ts
	session.Version++
	return true, nil
}

// CloseSession stamps closedAt if not already set
func (s *TranscriptStore) CloseSession(_ context.Context, sessionID string, now time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if !session.ClosedAt.Valid {
		session.ClosedAt = sql.NullTime{Time: now, Valid: true}
	}
	return nil
}

// FindByOwnerAndWindow returns the owner's sessions intersecting [start, end)
func (s *TranscriptStore) FindByOwnerAndWindow(_ context.Context, owner string, start, end time.Time) ([]*repository.Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var result []*repository.Session
	for _, session := range s.sessions {
		if session.Owner != owner {
			continue
		}
		if session.StartedAt.Before(end) && !session.LastTs.Before(start) {
			result = append(result, copySession(session))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}

// DistinctOwnersInWindow enumerates owners with activity in [start, end)
func (s *TranscriptStore) DistinctOwnersInWindow(_ context.Context, start, end time.Time) ([]string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	seen := make(map[string]bool)
	var owners []string
	for _, session := range s.sessions {
		if seen[session.Owner] {
			continue
		}
		if session.StartedAt.Before(end) && !session.LastTs.Before(start) {
			seen[session.Owner] = true
			owners = append(owners, session.Owner)
		}
	}
	sort.Strings(owners)
	return owners, nil
}

// RecentUserMessages returns the owner's user-role messages, oldest first
func (s *TranscriptStore) RecentUserMessages(ctx context.Context, owner string, limit int) ([]repository.Message, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mutex.Lock()
	var sessions []*repository.Session
	for _, session := range s.sessions {
		if session.Owner == owner {
			sessions = append(sessions, copySession(session))
		}
	}
	s.mutex.Unlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	// Oldest selected session first so the combined list reads forward.
	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}

	var result []repository.Message
	for _, session := range sessions {
		msgs, err := session.Messages()
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

func copySession(s *repository.Session) *repository.Session {
	dup := *s
	dup.Msgs = append([]byte(nil), s.Msgs...)
	return &dup
}
