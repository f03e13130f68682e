package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoapp/memo-backend/internal/repository"
)

var _ repository.TranscriptStore = (*TranscriptStore)(nil)

func TestTranscriptStore_AppendMaintainsInvariants(t *testing.T) {
	ctx := context.Background()
	store := NewTranscriptStore()

	session, err := store.CreateSession(ctx, "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), session.Version)
	assert.Equal(t, 0, session.MessageCount)

	const n = 25
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		require.NoError(t, store.AppendMessage(ctx, session.SessionID, role, fmt.Sprintf("m%d", i), time.Now()))

		got, err := store.GetSession(ctx, session.SessionID)
		require.NoError(t, err)
		msgs, err := got.Messages()
		require.NoError(t, err)

		// messageCount == len(messages) and version moves in lockstep.
		assert.Equal(t, i+1, got.MessageCount)
		assert.Len(t, msgs, i+1)
		assert.Equal(t, int64(i+1), got.Version)
		for j, m := range msgs {
			assert.Equal(t, j+1, m.Seq)
		}
	}
}

func TestTranscriptStore_AppendToMissingSession(t *testing.T) {
	store := NewTranscriptStore()
	err := store.AppendMessage(context.Background(), "no-such-id", "user", "x", time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTranscriptStore_LostRaceSucceedsAfterOneRetry(t *testing.T) {
	ctx := context.Background()
	store := NewTranscriptStore()

	session, err := store.CreateSession(ctx, "u1", time.Now())
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, session.SessionID, "user", "one", time.Now()))

	// Sneak a competing append in between the first attempt's version read
	// and its conditional apply. The first attempt loses; the retry must
	// land the message with a fresh seq.
	injected := false
	store.AppendGate = func(attempt int) {
		if attempt == 1 && !injected {
			injected = true
			gate := store.AppendGate
			store.AppendGate = nil
			require.NoError(t, store.AppendMessage(ctx, session.SessionID, "user", "racer", time.Now()))
			store.AppendGate = gate
		}
	}

	require.NoError(t, store.AppendMessage(ctx, session.SessionID, "user", "delayed", time.Now()))
	store.AppendGate = nil

	got, err := store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.MessageCount)
	assert.Equal(t, int64(3), got.Version)

	msgs, err := got.Messages()
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "racer", msgs[1].Content)
	assert.Equal(t, "delayed", msgs[2].Content)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.Seq, "no message may be lost or duplicated")
	}
}

func TestTranscriptStore_SecondLostRaceIsConflict(t *testing.T) {
	ctx := context.Background()
	store := NewTranscriptStore()

	session, err := store.CreateSession(ctx, "u1", time.Now())
	require.NoError(t, err)

	// Lose the race on both attempts: append conflicts twice, then gives up.
	store.AppendGate = func(attempt int) {
		gate := store.AppendGate
		store.AppendGate = nil
		require.NoError(t, store.AppendMessage(ctx, session.SessionID, "user", "racer", time.Now()))
		store.AppendGate = gate
	}

	err = store.AppendMessage(ctx, session.SessionID, "user", "loser", time.Now())
	store.AppendGate = nil
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestTranscriptStore_CloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewTranscriptStore()

	session, err := store.CreateSession(ctx, "u1", time.Now())
	require.NoError(t, err)

	first := time.Now()
	require.NoError(t, store.CloseSession(ctx, session.SessionID, first))
	require.NoError(t, store.CloseSession(ctx, session.SessionID, first.Add(time.Hour)))

	got, err := store.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	require.True(t, got.ClosedAt.Valid)
	assert.Equal(t, first, got.ClosedAt.Time)
}

func TestTranscriptStore_WindowQueries(t *testing.T) {
	ctx := context.Background()
	store := NewTranscriptStore()
	day := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)

	inWindow, err := store.CreateSession(ctx, "u1", day.Add(9*time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, inWindow.SessionID, "user", "hi", day.Add(9*time.Hour)))

	_, err = store.CreateSession(ctx, "u1", day.AddDate(0, 0, -2))
	require.NoError(t, err)
	_, err = store.CreateSession(ctx, "u2", day.Add(13*time.Hour))
	require.NoError(t, err)

	sessions, err := store.FindByOwnerAndWindow(ctx, "u1", day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, inWindow.SessionID, sessions[0].SessionID)

	owners, err := store.DistinctOwnersInWindow(ctx, day, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, owners)
}

func TestTranscriptStore_RecentUserMessages(t *testing.T) {
	ctx := context.Background()
	store := NewTranscriptStore()
	base := time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC)

	s1, err := store.CreateSession(ctx, "u1", base)
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, s1.SessionID, "user", "first", base))
	require.NoError(t, store.AppendMessage(ctx, s1.SessionID, "assistant", "ignored", base.Add(time.Second)))

	s2, err := store.CreateSession(ctx, "u1", base.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.AppendMessage(ctx, s2.SessionID, "user", "second", base.Add(time.Hour)))

	msgs, err := store.RecentUserMessages(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}
