package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// RemoteClient talks to the standalone agent service: chat goes over a
// websocket (one request, one reply, close), daily summarize over HTTP.
type RemoteClient struct {
	wsURL      string
	summaryURL string
	httpClient *http.Client
	dialer     *websocket.Dialer
	log        *logrus.Logger
}

// NewRemoteClient creates a client for the agent service. wsURL must be a
// ws:// or wss:// endpoint; summaryURL is the HTTP summarize endpoint.
func NewRemoteClient(wsURL, summaryURL string, log *logrus.Logger) *RemoteClient {
	return &RemoteClient{
		wsURL:      wsURL,
		summaryURL: summaryURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		log: log,
	}
}

type chatPayload struct {
	Owner   string `json:"openid"`
	Message string `json:"message"`
	ChatContext
}

// Chat sends one message over the websocket and waits for the first reply
// frame. The caller's context deadline bounds the whole exchange.
func (c *RemoteClient) Chat(ctx context.Context, owner, message string, cc ChatContext) (string, error) {
	payload, err := json.Marshal(chatPayload{Owner: owner, Message: message, ChatContext: cc})
	if err != nil {
		return "", fmt.Errorf("encode chat payload: %w", err)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return "", fmt.Errorf("dial agent: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return "", fmt.Errorf("send to agent: %w", err)
	}

	_, reply, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read agent reply: %w", err)
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))

	return string(reply), nil
}

// SummarizeDay posts the packed transcript to the summarize endpoint
func (c *RemoteClient) SummarizeDay(ctx context.Context, owner, packedText string) (*SummarizeResult, error) {
	body, err := json.Marshal(map[string]string{
		"type":   "daily_summary",
		"openid": owner,
		"text":   packedText,
	})
	if err != nil {
		return nil, fmt.Errorf("encode summarize payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.summaryURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read summarize response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summarize endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var result SummarizeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode summarize response: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"owner": owner,
		"model": result.Model,
	}).Debug("summarize response received")

	return &result, nil
}
