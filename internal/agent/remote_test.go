package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestRemoteClient_ChatRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}

	var received chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(payload, &received))

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello back")))
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewRemoteClient(wsURL, "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cc := ChatContext{
		PriorMessages:  []PriorMessage{{Ts: time.Now(), Content: "earlier"}},
		PriorSummaries: []PriorSummary{{Date: "2025-10-09", Article: "a quiet day"}},
	}
	reply, err := client.Chat(ctx, "u1", "hi there", cc)
	require.NoError(t, err)
	assert.Equal(t, "hello back", reply)

	assert.Equal(t, "u1", received.Owner)
	assert.Equal(t, "hi there", received.Message)
	require.Len(t, received.PriorMessages, 1)
	assert.Equal(t, "earlier", received.PriorMessages[0].Content)
	require.Len(t, received.PriorSummaries, 1)
	assert.Equal(t, "a quiet day", received.PriorSummaries[0].Article)
}

func TestRemoteClient_ChatDialFailure(t *testing.T) {
	client := NewRemoteClient("ws://127.0.0.1:1/ws", "", testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.Chat(ctx, "u1", "hi", ChatContext{})
	assert.Error(t, err)
}

func TestRemoteClient_SummarizeDay(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SummarizeResult{
			Article:      "the day in review",
			ArticleTitle: "A Day",
			Model:        "agent-v1",
		})
	}))
	defer srv.Close()

	client := NewRemoteClient("", srv.URL, testLogger())

	result, err := client.SummarizeDay(context.Background(), "u1", "[2025-10-10 09:00:00] user: hi\n")
	require.NoError(t, err)
	assert.Equal(t, "the day in review", result.Article)
	assert.Equal(t, "A Day", result.ArticleTitle)
	assert.Equal(t, "agent-v1", result.Model)

	assert.Equal(t, "daily_summary", received["type"])
	assert.Equal(t, "u1", received["openid"])
	assert.Contains(t, received["text"], "user: hi")
}

func TestRemoteClient_SummarizeDayNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewRemoteClient("", srv.URL, testLogger())

	_, err := client.SummarizeDay(context.Background(), "u1", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
